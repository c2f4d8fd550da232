// Package ingest implements the harvest ingestion, validation and
// reconciliation pipeline shared by all submission sources.
package ingest

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Candidate is the canonical normalized row every source adapter produces
// before entering the shared validation pipeline. Raw string fields are kept
// as-is; parsing and validation happen in the pipeline so that failures can
// be quarantined with full context.
type Candidate struct {
	SourceID    string
	RawBoxCode  string
	RawParcel   string
	RawWeight   string
	Latitude    *float64
	Longitude   *float64
	PhotoURL    string
	CollectedAt time.Time
}

// HasCoordinates reports whether the candidate carries a usable position.
func (c *Candidate) HasCoordinates() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// RawRow is one source-shaped row. Each source keeps its quirks inside its
// own Normalize; shared logic only ever sees Candidates.
type RawRow interface {
	// Normalize maps the source row onto the canonical candidate. runTime is
	// the fallback collection timestamp when the source carries none.
	Normalize(runTime time.Time) Candidate
	// Snapshot serializes the raw row for the error ledger.
	Snapshot() string
}

// StringOrNumber is a field the source platform delivers either as a JSON
// string or as a JSON number, depending on the form version. Both decode to
// the raw string; validation happens downstream.
type StringOrNumber string

func (s *StringOrNumber) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = StringOrNumber(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = StringOrNumber(n.String())
	return nil
}

// Attachment is one photo descriptor on an API submission. The primary
// download URL is always present; sized variants are optional.
type Attachment struct {
	DownloadURL string `json:"download_url"`
	LargeURL    string `json:"download_large_url,omitempty"`
	MediumURL   string `json:"download_medium_url,omitempty"`
	SmallURL    string `json:"download_small_url,omitempty"`
}

// BestURL prefers the large variant and falls back to the primary URL.
func (a *Attachment) BestURL() string {
	if a.LargeURL != "" {
		return a.LargeURL
	}
	return a.DownloadURL
}

// APIRow is a submission row as delivered by the field data platform. The
// same shape arrives in bulk payloads.
type APIRow struct {
	ID             int            `json:"_id,omitempty"`
	Parcel         string         `json:"parcel"`
	BoxCode        string         `json:"box_code"`
	Weight         StringOrNumber `json:"weight"`
	Geolocation    string         `json:"geolocation,omitempty"` // "lat lng", space separated
	GPSLatitude    *float64       `json:"_latitude,omitempty"`
	GPSLongitude   *float64       `json:"_longitude,omitempty"`
	SubmissionTime string         `json:"_submission_time,omitempty"`
	Start          string         `json:"start,omitempty"` // takes precedence over submission time
	Attachments    []Attachment   `json:"_attachments,omitempty"`
}

// Normalize implements RawRow.
func (r *APIRow) Normalize(runTime time.Time) Candidate {
	cand := Candidate{
		RawBoxCode: strings.TrimSpace(r.BoxCode),
		RawParcel:  strings.TrimSpace(r.Parcel),
		RawWeight:  strings.TrimSpace(string(r.Weight)),
	}
	if r.ID != 0 {
		cand.SourceID = strconv.Itoa(r.ID)
	}

	// Explicit GPS fields win over the free-form coordinate string
	if r.GPSLatitude != nil && r.GPSLongitude != nil {
		cand.Latitude = r.GPSLatitude
		cand.Longitude = r.GPSLongitude
	} else if lat, lng, ok := ParseCoordinates(r.Geolocation); ok {
		cand.Latitude = &lat
		cand.Longitude = &lng
	}

	if len(r.Attachments) > 0 {
		cand.PhotoURL = r.Attachments[0].BestURL()
	}

	cand.CollectedAt = runTime
	if t, ok := parseTimestamp(r.SubmissionTime); ok {
		cand.CollectedAt = t
	}
	if t, ok := parseTimestamp(r.Start); ok {
		cand.CollectedAt = t
	}
	return cand
}

// Snapshot implements RawRow.
func (r *APIRow) Snapshot() string {
	return marshalSnapshot(r)
}

// SheetRow is a current-season spreadsheet export row.
type SheetRow struct {
	Parcel      string `json:"parcel"`
	BoxCode     string `json:"box_code"`
	Weight      string `json:"weight"`
	Coordinates string `json:"coordinates,omitempty"` // "lat lng", space separated
	Timestamp   string `json:"timestamp,omitempty"`
	Year        string `json:"year,omitempty"`
	Month       string `json:"month,omitempty"`
	Day         string `json:"day,omitempty"`
}

// Normalize implements RawRow. Explicit year/month/day columns take precedence
// over the timestamp column, with the time defaulted to noon.
func (r *SheetRow) Normalize(runTime time.Time) Candidate {
	cand := Candidate{
		RawBoxCode: strings.TrimSpace(r.BoxCode),
		RawParcel:  strings.TrimSpace(r.Parcel),
		RawWeight:  strings.TrimSpace(r.Weight),
	}
	if lat, lng, ok := ParseCoordinates(r.Coordinates); ok {
		cand.Latitude = &lat
		cand.Longitude = &lng
	}

	cand.CollectedAt = runTime
	if t, ok := parseTimestamp(r.Timestamp); ok {
		cand.CollectedAt = t
	}
	if t, ok := dateFromColumns(r.Year, r.Month, r.Day); ok {
		cand.CollectedAt = t
	}
	return cand
}

// Snapshot implements RawRow.
func (r *SheetRow) Snapshot() string {
	return marshalSnapshot(r)
}

// HistoricalSheetRow is a historical spreadsheet export row. It adds an
// explicit start/end datetime pair; start is authoritative for the collection
// time, falling back to year/month/day, then to the run time.
type HistoricalSheetRow struct {
	SheetRow
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Normalize implements RawRow.
func (r *HistoricalSheetRow) Normalize(runTime time.Time) Candidate {
	cand := Candidate{
		RawBoxCode: strings.TrimSpace(r.BoxCode),
		RawParcel:  strings.TrimSpace(r.Parcel),
		RawWeight:  strings.TrimSpace(r.Weight),
	}
	if lat, lng, ok := ParseCoordinates(r.Coordinates); ok {
		cand.Latitude = &lat
		cand.Longitude = &lng
	}

	cand.CollectedAt = runTime
	if t, ok := dateFromColumns(r.Year, r.Month, r.Day); ok {
		cand.CollectedAt = t
	}
	if t, ok := parseTimestamp(r.Start); ok {
		cand.CollectedAt = t
	}
	return cand
}

// Snapshot implements RawRow.
func (r *HistoricalSheetRow) Snapshot() string {
	return marshalSnapshot(r)
}

// timestampLayouts are tried in order when parsing source timestamps.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006",
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// dateFromColumns builds a collection date from explicit year/month/day
// spreadsheet columns, with the time-of-day defaulted to noon.
func dateFromColumns(year, month, day string) (time.Time, bool) {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil || y < 1900 || y > 2200 {
		return time.Time{}, false
	}
	m, err := strconv.Atoi(strings.TrimSpace(month))
	if err != nil || m < 1 || m > 12 {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(strings.TrimSpace(day))
	if err != nil || d < 1 || d > 31 {
		return time.Time{}, false
	}
	return time.Date(y, time.Month(m), d, 12, 0, 0, 0, time.UTC), true
}

func marshalSnapshot(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
