// Package opendata downloads the building passports dataset from the
// data.gov.spb.ru open-data portal, preferring the exported archive and
// falling back to the paginated API.
package opendata

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"buildings/internal/types"
)

// ReadCSV parses portal CSV data into header-keyed records. Portal exports
// are inconsistently encoded, so UTF-8 is tried first, then CP1251, then
// Latin-1.
func ReadCSV(data []byte) ([]string, []types.Record, error) {
	if utf8.Valid(data) {
		if cols, recs, err := parseCSV(data); err == nil {
			return cols, recs, nil
		}
	}
	for _, enc := range []encoding.Encoding{charmap.Windows1251, charmap.ISO8859_1} {
		decoded, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		if cols, recs, err := parseCSV(decoded); err == nil {
			return cols, recs, nil
		}
	}
	return nil, nil, fmt.Errorf("could not parse CSV with any known encoding")
}

func parseCSV(data []byte) ([]string, []types.Record, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1 // portal exports are occasionally ragged

	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("empty CSV")
	}

	header := rows[0]
	records := make([]types.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(types.Record, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}
	return header, records, nil
}

// WriteCSV renders records with the given column order. Columns absent from a
// record are written empty.
func WriteCSV(path string, columns []string, records []types.Record) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(columns); err != nil {
		return err
	}
	row := make([]string, len(columns))
	for _, rec := range records {
		for i, col := range columns {
			row[i] = rec[col]
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return writeFile(path, buf.Bytes())
}

// Columns returns the union of keys across records in a stable order.
// API responses carry no header row, so the column set is reconstructed.
func Columns(records []types.Record) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}
