// Package view computes the derived views of a place collection: the
// filtered list and the aggregate statistics. Everything here is a pure
// function of its inputs and is recomputed from a single snapshot.
package view

import (
	"strings"

	"github.com/pkordes/travel-log/internal/domain"
	"github.com/pkordes/travel-log/internal/geo"
)

// StatusAll is the status filter that matches every place.
const StatusAll = "all"

// Filter returns the places matching both the text query and the status filter,
// in collection order. The result is never nil.
func Filter(places []domain.Place, query, status string) []domain.Place {
	q := strings.ToLower(query)
	out := make([]domain.Place, 0, len(places))
	for _, p := range places {
		if status != StatusAll && string(p.Status) != status {
			continue
		}
		if !strings.Contains(searchText(p), q) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// searchText is name, country, city and the tags joined into one lowercase
// string. A query may therefore match across a field boundary.
func searchText(p domain.Place) string {
	return strings.ToLower(p.Name + " " + p.Country + " " + p.City + " " + strings.Join(p.Tags, " "))
}

// Stats are the aggregate counts shown in the header.
type Stats struct {
	VisitedCount                int `json:"visitedCount"`
	WishlistCount               int `json:"wishlistCount"`
	DistinctVisitedCountryCount int `json:"distinctVisitedCountryCount"`
}

// ComputeStats counts visited and wishlist places and distinct visited countries.
//
// With a loaded index, countries are distinct resolved codes. Without one the
// count falls back to distinct trimmed country strings, which is case-sensitive
// and does not fold aliases, so the two modes can disagree on the same data.
func ComputeStats(places []domain.Place, ix *geo.Index) Stats {
	var s Stats
	var visited []domain.Place
	for _, p := range places {
		switch p.Status {
		case domain.StatusVisited:
			s.VisitedCount++
			visited = append(visited, p)
		case domain.StatusWishlist:
			s.WishlistCount++
		}
	}

	if ix.Loaded() {
		s.DistinctVisitedCountryCount = len(geo.VisitedCodes(visited, ix))
		return s
	}
	names := make(map[string]struct{})
	for _, p := range visited {
		if name := strings.TrimSpace(p.Country); name != "" {
			names[name] = struct{}{}
		}
	}
	s.DistinctVisitedCountryCount = len(names)
	return s
}
