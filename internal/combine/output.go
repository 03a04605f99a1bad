package combine

import (
	"sort"

	"buildings/internal/opendata"
	"buildings/internal/types"
)

// Flat column names shared by the CSV output and the database sink.
const (
	ColStreet            = "street"
	ColHouse             = "house"
	ColCorpus            = "corpus"
	ColLetter            = "letter"
	ColNormalizedAddress = "normalized_address"
	ColMergeKind         = "merge_kind"
	ColCitywallsJSON     = "citywalls_json"
)

var citywallsColumns = []string{
	"citywalls_title",
	"citywalls_photo_url",
	"citywalls_address",
	"citywalls_architects",
	"citywalls_year_built",
	"citywalls_style",
	"citywalls_comments",
	"citywalls_page_url",
}

// ColumnsFor produces the full flat column list for the combined dataset:
// unified address fields, the citywalls fields, every passport column seen in
// the data, and the citywalls JSON blob last.
func ColumnsFor(combined []types.CombinedBuilding) []string {
	cols := []string{ColStreet, ColHouse, ColCorpus, ColLetter, ColNormalizedAddress, ColMergeKind}
	cols = append(cols, citywallsColumns...)

	seen := make(map[string]bool)
	for _, c := range combined {
		for col := range c.Passport {
			seen[col] = true
		}
	}
	passport := make([]string, 0, len(seen))
	for col := range seen {
		passport = append(passport, col)
	}
	sort.Strings(passport)

	cols = append(cols, passport...)
	cols = append(cols, ColCitywallsJSON)
	return cols
}

// Flatten renders a combined record as a flat column-to-value map.
func Flatten(c types.CombinedBuilding) types.Record {
	rec := types.Record{
		ColStreet:            c.Street,
		ColHouse:             c.House,
		ColCorpus:            c.Corpus,
		ColLetter:            c.Letter,
		ColNormalizedAddress: c.NormalizedAddress,
		ColMergeKind:         c.MergeKind,
		ColCitywallsJSON:     c.CitywallsJSON,
	}
	if b := c.Citywalls; b != nil {
		rec["citywalls_title"] = b.Title
		rec["citywalls_photo_url"] = b.PhotoURL
		rec["citywalls_address"] = b.Address
		rec["citywalls_architects"] = b.Architects
		rec["citywalls_year_built"] = b.YearBuilt
		rec["citywalls_style"] = b.Style
		rec["citywalls_comments"] = b.Comments
		rec["citywalls_page_url"] = b.PageURL
	}
	for col, v := range c.Passport {
		rec[col] = v
	}
	return rec
}

// WriteCSV writes the combined dataset as a flat CSV file.
func WriteCSV(path string, combined []types.CombinedBuilding) error {
	cols := ColumnsFor(combined)
	records := make([]types.Record, 0, len(combined))
	for _, c := range combined {
		records = append(records, Flatten(c))
	}
	return opendata.WriteCSV(path, cols, records)
}
