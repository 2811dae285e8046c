package domain

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
)

// CSVHeaders are the column names written as the first row of a CSV export.
var CSVHeaders = []string{
	"id", "name", "country", "country_code", "city", "lat", "lng",
	"status", "date_visited", "rating", "notes", "tags",
}

// ExportCSV encodes places as CSV, one row per place in collection order.
// Tags within a row are pipe-separated ("|") to keep each place on one line.
// CSV is an export-only format; ParseImport reads JSON.
func ExportCSV(places []Place) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(CSVHeaders); err != nil {
		return nil, fmt.Errorf("domain.ExportCSV: %w", err)
	}
	for _, p := range places {
		if err := w.Write(csvRecord(p)); err != nil {
			return nil, fmt.Errorf("domain.ExportCSV: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("domain.ExportCSV: %w", err)
	}
	return buf.Bytes(), nil
}

func csvRecord(p Place) []string {
	return []string{
		p.ID,
		p.Name,
		p.Country,
		p.CountryCode,
		p.City,
		strconv.FormatFloat(p.Lat, 'f', -1, 64),
		strconv.FormatFloat(p.Lng, 'f', -1, 64),
		string(p.Status),
		p.DateVisited,
		strconv.Itoa(p.Rating),
		p.Notes,
		strings.Join(p.Tags, "|"),
	}
}
