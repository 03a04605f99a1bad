// Package combine merges the citywalls and open-data building datasets by
// normalized address components.
package combine

import (
	"regexp"
	"strings"

	"buildings/internal/types"
)

var (
	// cityPrefixRe strips leading city designators from open-data addresses.
	cityPrefixRe = regexp.MustCompile(`(?i)^(г\.|город|г\s+|санкт-петербург,\s*|\s*спб\s*,\s*|нп в составе спб\s*)`)

	houseRe  = regexp.MustCompile(`^(?:дом\s*|д\.\s*)?(\d+[\p{L}\d/\-]*)`)
	letterRe = regexp.MustCompile(`(?i)(?:литера?|лит\.?|л\.?)\s*([а-яё\d]+)`)
	corpusRe = regexp.MustCompile(`(?i)(?:корпус|корп\.?|к\.?)\s*([а-яё\d]+)`)

	// houseStartRe locates the boundary between street name and house part
	// when the address has no comma.
	houseStartRe = regexp.MustCompile(`\s+\d`)
)

// ParseAddress splits a free-form address into street, house, corpus and
// letter components. stripCity removes the city prefix open-data addresses
// carry.
func ParseAddress(address string, stripCity bool) types.AddressParts {
	var parts types.AddressParts

	address = strings.TrimSpace(address)
	if address == "" {
		return parts
	}
	if stripCity {
		address = strings.TrimSpace(cityPrefixRe.ReplaceAllString(address, ""))
	}

	street, housePart := splitStreetHouse(address)
	parts.Street = strings.TrimSpace(street)

	if housePart != "" {
		if m := houseRe.FindStringSubmatch(housePart); m != nil {
			parts.House = strings.TrimSpace(m[1])
		}
		if m := letterRe.FindStringSubmatch(housePart); m != nil {
			parts.Letter = strings.ToUpper(strings.TrimSpace(m[1]))
		}
		if m := corpusRe.FindStringSubmatch(housePart); m != nil {
			parts.Corpus = strings.ToUpper(strings.TrimSpace(m[1]))
		}
	}
	return parts
}

// splitStreetHouse cuts the address at the first comma or at the first
// whitespace run followed by a digit, whichever comes first.
func splitStreetHouse(address string) (street, house string) {
	comma := strings.Index(address, ",")
	digit := -1
	if loc := houseStartRe.FindStringIndex(address); loc != nil {
		digit = loc[0]
	}

	cut := comma
	if cut < 0 || (digit >= 0 && digit < cut) {
		cut = digit
	}
	if cut < 0 {
		return address, ""
	}

	street = address[:cut]
	house = strings.TrimSpace(strings.TrimPrefix(address[cut:], ","))
	return street, house
}

// CleanKey canonicalizes a component for merge comparison: lowercase with
// every character outside [а-яa-z0-9] removed.
func CleanKey(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'а' && r <= 'я') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// NormalizedAddress renders the canonical address string for a merged record.
func NormalizedAddress(p types.AddressParts) string {
	addr := p.Street
	if p.House != "" {
		addr += ", " + p.House
	}
	if p.Letter != "" {
		addr += " лит." + p.Letter
	}
	if p.Corpus != "" {
		addr += " корп." + p.Corpus
	}
	return strings.TrimSpace(addr)
}
