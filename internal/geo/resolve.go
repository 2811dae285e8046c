package geo

import (
	"strings"

	"github.com/pkordes/travel-log/internal/domain"
)

// Resolve returns the alpha-2 code a place is attributed to.
//
// An explicit CountryCode always wins, even when no boundary carries it.
// Otherwise the free-text country is looked up in the index. ok is false for
// unattributed places; they still count as places but never as countries.
func Resolve(p domain.Place, ix *Index) (code string, ok bool) {
	if cc := strings.TrimSpace(p.CountryCode); cc != "" {
		return strings.ToUpper(cc), true
	}
	return ix.Lookup(p.Country)
}

// VisitedCodes returns the set of codes resolved from visited places.
func VisitedCodes(places []domain.Place, ix *Index) map[string]struct{} {
	codes := make(map[string]struct{})
	for _, p := range places {
		if p.Status != domain.StatusVisited {
			continue
		}
		if code, ok := Resolve(p, ix); ok {
			codes[code] = struct{}{}
		}
	}
	return codes
}

// IsVisited classifies a boundary polygon against a visited-code set.
// Features with no recognizable code are never visited.
func IsVisited(f Feature, visited map[string]struct{}) bool {
	code := FeatureCode(f.Properties)
	if code == "" {
		return false
	}
	_, ok := visited[code]
	return ok
}

// Style is how a country polygon is drawn.
type Style struct {
	FillColor   string  `json:"fillColor"`
	FillOpacity float64 `json:"fillOpacity"`
	Color       string  `json:"color"`
	Weight      int     `json:"weight"`
}

// Shade returns the polygon style for f: visited countries are filled red,
// the rest are left almost transparent.
func Shade(f Feature, visited map[string]struct{}) Style {
	if IsVisited(f, visited) {
		return Style{FillColor: "#f87171", FillOpacity: 0.6, Color: "#999", Weight: 1}
	}
	return Style{FillColor: "#ffffff", FillOpacity: 0.05, Color: "#999", Weight: 1}
}
