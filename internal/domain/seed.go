package domain

import "github.com/google/uuid"

// SeedPlaces returns the starter collection shown to a first-time anonymous
// user. Every call returns fresh identifiers.
func SeedPlaces() []Place {
	return []Place{
		{
			ID:          uuid.NewString(),
			Name:        "Lake Bled",
			Country:     "Slovenia",
			CountryCode: "SI",
			City:        "Bled",
			Lat:         46.3625,
			Lng:         14.0936,
			Status:      StatusVisited,
			DateVisited: "2025-10-23",
			Rating:      5,
			Notes:       "Boat ride to the island, great views.",
			Tags:        []string{"lake", "hiking"},
		},
		{
			ID:          uuid.NewString(),
			Name:        "Prague Old Town",
			Country:     "Czechia",
			CountryCode: "CZ",
			City:        "Prague",
			Lat:         50.087,
			Lng:         14.406,
			Status:      StatusWishlist,
			Rating:      0,
			Notes:       "Bridge, old town, beer.",
			Tags:        []string{"sightseeing"},
		},
	}
}
