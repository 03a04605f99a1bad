package types

import "strings"

// Building holds one building record scraped from citywalls.ru.
// We keep only the fields shown on the street listing pages; add more as needed.
type Building struct {
	Street     string `json:"street"`
	Title      string `json:"title"`
	PhotoURL   string `json:"photo_url"`
	Address    string `json:"address"`
	Architects string `json:"architects"`
	YearBuilt  string `json:"year_built"`
	Style      string `json:"style"`
	Comments   string `json:"comments"`
	PageURL    string `json:"page_url"`
}

// Record is one row of the open-data portal dataset keyed by CSV header.
// The portal schema changes between dataset versions, so rows stay schema-free.
type Record map[string]string

// AddressParts are the components extracted from a free-form address string.
type AddressParts struct {
	Street string `json:"street"`
	House  string `json:"house"`
	Corpus string `json:"corpus"`
	Letter string `json:"letter"`
}

// Merge kinds, in cascade order. Unmatched records keep their source tag.
const (
	MergeAllFields         = "all_fields"
	MergeStreetHouse       = "street_house"
	MergeStreetHouseCorpus = "street_house_corpus"
	MergeStreetHouseLetter = "street_house_letter"
	MergeCitywallsOnly     = "citywalls_only"
	MergeOpenDataOnly      = "opendata_only"
)

// CombinedBuilding is the merged record produced from the citywalls and
// open-data sources. Address components prefer the citywalls side when both
// sources matched.
type CombinedBuilding struct {
	AddressParts

	// NormalizedAddress is the canonical "<street>, <house> лит.X корп.Y" form.
	NormalizedAddress string `json:"normalized_address"`

	// MergeKind records which cascade pass (or source tag) produced this row.
	MergeKind string `json:"merge_kind"`

	// Citywalls side; nil for opendata-only rows.
	Citywalls *Building `json:"citywalls,omitempty"`

	// Passport holds the open-data row; nil for citywalls-only rows.
	Passport Record `json:"passport,omitempty"`

	// CitywallsJSON is the citywalls side serialized once for the DB sink and
	// CSV output, mirroring the passport columns which stay flat.
	CitywallsJSON string `json:"citywalls_json,omitempty"`
}

// Latitude and Longitude return coordinates when the passport row carries
// them. Geocoding is not performed; only columns already present are used.
func (c *CombinedBuilding) Latitude() (string, bool)  { return c.coord("latitude", "широта") }
func (c *CombinedBuilding) Longitude() (string, bool) { return c.coord("longitude", "долгота") }

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func (c *CombinedBuilding) coord(names ...string) (string, bool) {
	if c.Passport == nil {
		return "", false
	}
	for col, v := range c.Passport {
		if v == "" {
			continue
		}
		for _, name := range names {
			if containsFold(col, name) {
				return v, true
			}
		}
	}
	return "", false
}
