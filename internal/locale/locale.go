// Package locale resolves Audible marketplaces by country code.
package locale

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales.yaml
var localesYAML []byte

// ErrNotFound is returned when no marketplace matches a country code.
var ErrNotFound = errors.New("country code not found")

// Locale identifies an Audible marketplace.
type Locale struct {
	CountryCode   string `json:"country_code" yaml:"country_code"`
	Domain        string `json:"domain" yaml:"domain"`
	MarketplaceID string `json:"market_place_id" yaml:"market_place_id"`
}

// locales is keyed by region name and never written after init.
var locales map[string]Locale

func init() {
	if err := yaml.Unmarshal(localesYAML, &locales); err != nil {
		panic(fmt.Errorf("embedded locale table is malformed: %w", err))
	}
}

// Resolve returns the marketplace for a country code such as "us" or "de".
// The match is case-insensitive.
func Resolve(countryCode string) (Locale, error) {
	cc := strings.ToLower(strings.TrimSpace(countryCode))
	for _, l := range locales {
		if l.CountryCode == cc {
			return l, nil
		}
	}
	return Locale{}, fmt.Errorf("%w: %q", ErrNotFound, countryCode)
}

// ByRegion returns the marketplace registered under a region name such as
// "united_states".
func ByRegion(region string) (Locale, bool) {
	l, ok := locales[region]
	return l, ok
}

// All returns every known marketplace ordered by country code.
func All() []Locale {
	out := make([]Locale, 0, len(locales))
	for _, l := range locales {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CountryCode < out[j].CountryCode })
	return out
}
