// Package export writes the combined building dataset as a point shapefile
// for use in GIS tools.
package export

import (
	"fmt"
	"strconv"
	"strings"

	shp "github.com/jonas-p/go-shp"

	"buildings/internal/types"
)

// attribute field widths; DBF strings are fixed-width.
const (
	addrWidth  = 120
	fieldWidth = 80
)

// WriteShapefile writes one point per combined record that carries
// coordinates. Records without coordinates are skipped and counted. Returns
// written and skipped counts.
func WriteShapefile(path string, combined []types.CombinedBuilding) (written, skipped int, err error) {
	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create shapefile: %w", err)
	}
	defer w.Close()

	fields := []shp.Field{
		shp.StringField("ADDRESS", addrWidth),
		shp.StringField("STREET", fieldWidth),
		shp.StringField("HOUSE", 20),
		shp.StringField("TITLE", addrWidth),
		shp.StringField("ARCHITECT", addrWidth),
		shp.StringField("YEAR", 40),
		shp.StringField("STYLE", fieldWidth),
		shp.StringField("MERGE", 30),
	}
	w.SetFields(fields)

	for _, c := range combined {
		latStr, latOK := c.Latitude()
		lonStr, lonOK := c.Longitude()
		if !latOK || !lonOK {
			skipped++
			continue
		}
		lat, lon, ok := parseCoords(latStr, lonStr)
		if !ok {
			skipped++
			continue
		}

		w.Write(&shp.Point{X: lon, Y: lat})

		attrs := []string{
			clip(c.NormalizedAddress, addrWidth),
			clip(c.Street, fieldWidth),
			clip(c.House, 20),
			"", "", "", "",
			c.MergeKind,
		}
		if b := c.Citywalls; b != nil {
			attrs[3] = clip(b.Title, addrWidth)
			attrs[4] = clip(b.Architects, addrWidth)
			attrs[5] = clip(b.YearBuilt, 40)
			attrs[6] = clip(b.Style, fieldWidth)
		}
		for i, v := range attrs {
			w.WriteAttribute(written, i, v)
		}
		written++
	}
	return written, skipped, nil
}

// parseCoords accepts both dot and comma decimal separators; the passport
// data uses either depending on the dataset version.
func parseCoords(latStr, lonStr string) (lat, lon float64, ok bool) {
	lat, err1 := strconv.ParseFloat(strings.ReplaceAll(latStr, ",", "."), 64)
	lon, err2 := strconv.ParseFloat(strings.ReplaceAll(lonStr, ",", "."), 64)
	return lat, lon, err1 == nil && err2 == nil
}

// clip truncates a value to its DBF field width, keeping rune boundaries.
func clip(s string, width int) string {
	if len(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(string(runes)) > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes)
}
