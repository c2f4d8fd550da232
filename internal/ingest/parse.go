package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/oliveyard/harvest-go/internal/datastore"
)

// RowError is a row-level quarantine decision: the error type feeds the
// ledger taxonomy, the message is operator-facing.
type RowError struct {
	Type    string
	Message string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func rowErrorf(errType, format string, args ...any) *RowError {
	return &RowError{Type: errType, Message: fmt.Sprintf(format, args...)}
}

// BoxCode is a parsed box identifier. The harvester id ties the container to
// a harvester; the box number is free-form and only used for display/audit.
type BoxCode struct {
	HarvesterID int
	BoxNumber   string
}

// String reassembles the canonical HH-NNNNNN form.
func (b BoxCode) String() string {
	return fmt.Sprintf("%d-%s", b.HarvesterID, b.BoxNumber)
}

// ParseBoxCode parses a raw box code of the form HH-NNNNNN: exactly two
// hyphen-separated segments, with the first parsing as a harvester id in
// [1, 99]. Anything else is an invalid_format quarantine.
func ParseBoxCode(raw string) (BoxCode, *RowError) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return BoxCode{}, rowErrorf(datastore.ErrInvalidFormat, "box code is empty")
	}
	if strings.Count(s, "-") != 1 {
		return BoxCode{}, rowErrorf(datastore.ErrInvalidFormat,
			"box code %q must have exactly two hyphen-separated segments", s)
	}

	head, tail, _ := strings.Cut(s, "-")
	id, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil {
		return BoxCode{}, rowErrorf(datastore.ErrInvalidFormat,
			"box code %q has a non-numeric harvester segment", s)
	}
	if id < 1 || id > 99 {
		return BoxCode{}, rowErrorf(datastore.ErrInvalidFormat,
			"box code %q harvester id %d out of range [1, 99]", s, id)
	}

	return BoxCode{HarvesterID: id, BoxNumber: strings.TrimSpace(tail)}, nil
}

// ParseParcelCode splits a raw parcel string of the shape "CODE - NAME" on
// the first hyphen. A leading "-NAME" pattern promotes the name to the code.
// ok is false when nothing usable remains; that is a soft failure deferring
// the row to geofencing, not a rejection.
func ParseParcelCode(raw string) (code, name string, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", "", false
	}

	left, right, found := strings.Cut(s, "-")
	if !found {
		return s, s, true
	}

	code = strings.TrimSpace(left)
	name = strings.TrimSpace(right)
	if code == "" {
		if name == "" {
			return "", "", false
		}
		// Leading "-NAME": the name doubles as the code
		code = name
	}
	if name == "" {
		name = code
	}
	return code, name, true
}

// ParseWeight interprets raw as kilograms and converts it to an integer gram
// count by rounding. Non-numeric or non-positive input is missing_data; a
// result above maxGrams is over_weight, a distinct category because the
// remediation differs (the operator should verify the decimal point, not
// discard the row).
func ParseWeight(raw string, maxGrams int) (int, *RowError) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, rowErrorf(datastore.ErrMissingData, "weight is missing")
	}
	// Accept a decimal comma from hand-entered spreadsheets
	s = strings.ReplaceAll(s, ",", ".")

	kg, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, rowErrorf(datastore.ErrMissingData, "weight %q is not numeric", raw)
	}

	grams := int(math.Round(kg * 1000))
	if grams <= 0 {
		return 0, rowErrorf(datastore.ErrMissingData, "weight %q is not positive", raw)
	}
	if grams > maxGrams {
		return 0, rowErrorf(datastore.ErrOverWeight,
			"weight %dg exceeds the %dg ceiling, likely a misplaced decimal point", grams, maxGrams)
	}
	return grams, nil
}

// ParseCoordinates parses a "lat lng" space-separated coordinate string.
func ParseCoordinates(raw string) (lat, lng float64, ok bool) {
	fields := strings.Fields(strings.TrimSpace(raw))
	if len(fields) < 2 {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, false
	}
	lng, err = strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, false
	}
	return lat, lng, true
}
