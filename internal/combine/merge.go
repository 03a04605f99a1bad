package combine

import (
	"encoding/json"
	"sort"
	"strings"

	"go.uber.org/zap"

	"buildings/internal/types"
)

// Stats counts how each merge pass contributed to the combined dataset.
type Stats struct {
	Total             int `json:"total"`
	AllFields         int `json:"all_fields"`
	StreetHouse       int `json:"street_house"`
	StreetHouseCorpus int `json:"street_house_corpus"`
	StreetHouseLetter int `json:"street_house_letter"`
	CitywallsOnly     int `json:"citywalls_only"`
	OpenDataOnly      int `json:"opendata_only"`
}

// entry is one record prepared for merging: its parsed components plus the
// cleaned comparison keys.
type entry struct {
	parts types.AddressParts

	street, house, corpus, letter string // cleaned

	building *types.Building
	passport types.Record
}

// Merge runs the cascaded address merge: exact components first, then
// street+house, then street+house+corpus and street+house+letter over
// whatever is still unmatched. Unmatched records from either side are kept
// and tagged with their source.
func Merge(citywalls []types.Building, passports []types.Record, log *zap.Logger) ([]types.CombinedBuilding, Stats) {
	left := prepareCitywalls(citywalls)
	right := preparePassports(passports)

	passes := []struct {
		kind string
		key  func(e *entry) string
	}{
		{types.MergeAllFields, func(e *entry) string {
			return e.street + "|" + e.house + "|" + e.corpus + "|" + e.letter
		}},
		{types.MergeStreetHouse, func(e *entry) string {
			return e.street + "|" + e.house
		}},
		{types.MergeStreetHouseCorpus, func(e *entry) string {
			return e.street + "|" + e.house + "|" + e.corpus
		}},
		{types.MergeStreetHouseLetter, func(e *entry) string {
			return e.street + "|" + e.house + "|" + e.letter
		}},
	}

	var combined []types.CombinedBuilding
	var stats Stats

	for _, pass := range passes {
		matched := mergePass(&left, &right, pass.key, pass.kind)
		combined = append(combined, matched...)
		switch pass.kind {
		case types.MergeAllFields:
			stats.AllFields = len(matched)
		case types.MergeStreetHouse:
			stats.StreetHouse = len(matched)
		case types.MergeStreetHouseCorpus:
			stats.StreetHouseCorpus = len(matched)
		case types.MergeStreetHouseLetter:
			stats.StreetHouseLetter = len(matched)
		}
	}

	for _, e := range left {
		combined = append(combined, buildCombined(e, nil, types.MergeCitywallsOnly))
		stats.CitywallsOnly++
	}
	for _, e := range right {
		combined = append(combined, buildCombined(nil, e, types.MergeOpenDataOnly))
		stats.OpenDataOnly++
	}
	stats.Total = len(combined)

	log.Info("datasets merged",
		zap.Int("total", stats.Total),
		zap.Int("all_fields", stats.AllFields),
		zap.Int("street_house", stats.StreetHouse),
		zap.Int("street_house_corpus", stats.StreetHouseCorpus),
		zap.Int("street_house_letter", stats.StreetHouseLetter),
		zap.Int("citywalls_only", stats.CitywallsOnly),
		zap.Int("opendata_only", stats.OpenDataOnly))

	return combined, stats
}

// mergePass joins the remaining entries on key, removing matched entries from
// both sides. Matching follows inner-join multiplicity: every left/right
// pairing with an equal key produces a combined row.
func mergePass(left, right *[]*entry, key func(*entry) string, kind string) []types.CombinedBuilding {
	index := make(map[string][]*entry)
	for _, r := range *right {
		k := key(r)
		if strings.Trim(k, "|") == "" {
			continue // no usable address components
		}
		index[k] = append(index[k], r)
	}

	matchedLeft := make(map[*entry]bool)
	matchedRight := make(map[*entry]bool)
	var out []types.CombinedBuilding

	for _, l := range *left {
		k := key(l)
		if strings.Trim(k, "|") == "" {
			continue
		}
		partners, ok := index[k]
		if !ok {
			continue
		}
		for _, r := range partners {
			out = append(out, buildCombined(l, r, kind))
			matchedRight[r] = true
		}
		matchedLeft[l] = true
	}

	*left = removeMatched(*left, matchedLeft)
	*right = removeMatched(*right, matchedRight)
	return out
}

func removeMatched(entries []*entry, matched map[*entry]bool) []*entry {
	if len(matched) == 0 {
		return entries
	}
	kept := entries[:0]
	for _, e := range entries {
		if !matched[e] {
			kept = append(kept, e)
		}
	}
	return kept
}

// buildCombined assembles a combined record. Address components prefer the
// citywalls side, falling back to the passport side.
func buildCombined(cw, od *entry, kind string) types.CombinedBuilding {
	var parts types.AddressParts
	if cw != nil {
		parts = cw.parts
	}
	if od != nil {
		if parts.Street == "" {
			parts.Street = od.parts.Street
		}
		if parts.House == "" {
			parts.House = od.parts.House
		}
		if parts.Corpus == "" {
			parts.Corpus = od.parts.Corpus
		}
		if parts.Letter == "" {
			parts.Letter = od.parts.Letter
		}
	}
	parts.Corpus = strings.ToUpper(parts.Corpus)
	parts.Letter = strings.ToUpper(parts.Letter)

	c := types.CombinedBuilding{
		AddressParts:      parts,
		NormalizedAddress: NormalizedAddress(parts),
		MergeKind:         kind,
	}
	if cw != nil {
		c.Citywalls = cw.building
		c.CitywallsJSON = citywallsJSON(cw.building)
	}
	if od != nil {
		c.Passport = od.passport
	}
	return c
}

// citywallsJSON serializes the non-empty citywalls fields once so the flat
// outputs (CSV, database) can carry the full source record.
func citywallsJSON(b *types.Building) string {
	fields := map[string]string{
		"street":     b.Street,
		"title":      b.Title,
		"photo_url":  b.PhotoURL,
		"address":    b.Address,
		"architects": b.Architects,
		"year_built": b.YearBuilt,
		"style":      b.Style,
		"comments":   b.Comments,
		"page_url":   b.PageURL,
	}
	for k, v := range fields {
		if v == "" {
			delete(fields, k)
		}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	return string(data)
}

// prepareCitywalls parses address components for the scraped records. The
// street name from the index page wins over whatever the address line parsed
// to.
func prepareCitywalls(buildings []types.Building) []*entry {
	entries := make([]*entry, 0, len(buildings))
	for i := range buildings {
		b := &buildings[i]
		parts := ParseAddress(b.Address, false)
		if b.Street != "" {
			parts.Street = b.Street
		}
		entries = append(entries, newEntry(parts, b, nil))
	}
	return entries
}

// preparePassports parses address components for the open-data rows, looking
// up the address column by name.
func preparePassports(passports []types.Record) []*entry {
	entries := make([]*entry, 0, len(passports))
	for _, rec := range passports {
		parts := ParseAddress(addressOf(rec), true)
		entries = append(entries, newEntry(parts, nil, rec))
	}
	return entries
}

func newEntry(parts types.AddressParts, b *types.Building, rec types.Record) *entry {
	return &entry{
		parts:    parts,
		street:   CleanKey(parts.Street),
		house:    CleanKey(parts.House),
		corpus:   CleanKey(parts.Corpus),
		letter:   CleanKey(parts.Letter),
		building: b,
		passport: rec,
	}
}

// addressOf finds the address column in an open-data row. An exact "адрес" or
// "address" column wins over qualified variants like "Юридический адрес";
// remaining candidates are tried in sorted column order so the choice does not
// depend on map iteration.
func addressOf(rec types.Record) string {
	cols := make([]string, 0, len(rec))
	for col := range rec {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	for _, col := range cols {
		lower := strings.ToLower(col)
		if lower == "адрес" || lower == "address" {
			return rec[col]
		}
	}
	for _, col := range cols {
		lower := strings.ToLower(col)
		if strings.Contains(lower, "адрес") || strings.Contains(lower, "address") {
			return rec[col]
		}
	}
	return ""
}
