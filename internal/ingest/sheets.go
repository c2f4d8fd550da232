package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/oliveyard/harvest-go/internal/errors"
)

// Spreadsheet column headers, matched case-insensitively after trimming.
const (
	colParcel      = "parcel"
	colBoxCode     = "box_code"
	colWeight      = "weight"
	colCoordinates = "coordinates"
	colTimestamp   = "timestamp"
	colYear        = "year"
	colMonth       = "month"
	colDay         = "day"
	colStart       = "start"
	colEnd         = "end"
)

// headerAliases maps the column names seen in real exports onto the
// canonical header set.
var headerAliases = map[string]string{
	"parcel":      colParcel,
	"parcel_code": colParcel,
	"box":         colBoxCode,
	"box_code":    colBoxCode,
	"boxcode":     colBoxCode,
	"weight":      colWeight,
	"weight_kg":   colWeight,
	"kg":          colWeight,
	"coordinates": colCoordinates,
	"geolocation": colCoordinates,
	"gps":         colCoordinates,
	"timestamp":   colTimestamp,
	"date":        colTimestamp,
	"year":        colYear,
	"month":       colMonth,
	"day":         colDay,
	"start":       colStart,
	"end":         colEnd,
}

// readSheet parses a CSV export into per-row column maps keyed by canonical
// header names. Unknown columns are ignored; ragged rows are padded.
func readSheet(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.New(fmt.Errorf("reading spreadsheet header: %w", err)).
			Component("ingest").
			Category(errors.CategoryFileParsing).
			Build()
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = headerAliases[strings.ToLower(strings.TrimSpace(h))]
	}

	var rows []map[string]string
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.New(fmt.Errorf("reading spreadsheet row %d: %w", len(rows)+2, err)).
				Component("ingest").
				Category(errors.CategoryFileParsing).
				Build()
		}

		row := make(map[string]string, len(columns))
		for i, col := range columns {
			if col == "" || i >= len(fields) {
				continue
			}
			row[col] = strings.TrimSpace(fields[i])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadCurrentSheet parses a current-season spreadsheet export into raw rows.
func ReadCurrentSheet(r io.Reader) ([]RawRow, error) {
	maps, err := readSheet(r)
	if err != nil {
		return nil, err
	}

	rows := make([]RawRow, 0, len(maps))
	for _, m := range maps {
		rows = append(rows, &SheetRow{
			Parcel:      m[colParcel],
			BoxCode:     m[colBoxCode],
			Weight:      m[colWeight],
			Coordinates: m[colCoordinates],
			Timestamp:   m[colTimestamp],
			Year:        m[colYear],
			Month:       m[colMonth],
			Day:         m[colDay],
		})
	}
	return rows, nil
}

// ReadHistoricalSheet parses a historical spreadsheet export into raw rows.
func ReadHistoricalSheet(r io.Reader) ([]RawRow, error) {
	maps, err := readSheet(r)
	if err != nil {
		return nil, err
	}

	rows := make([]RawRow, 0, len(maps))
	for _, m := range maps {
		rows = append(rows, &HistoricalSheetRow{
			SheetRow: SheetRow{
				Parcel:      m[colParcel],
				BoxCode:     m[colBoxCode],
				Weight:      m[colWeight],
				Coordinates: m[colCoordinates],
				Timestamp:   m[colTimestamp],
				Year:        m[colYear],
				Month:       m[colMonth],
				Day:         m[colDay],
			},
			Start: m[colStart],
			End:   m[colEnd],
		})
	}
	return rows, nil
}
