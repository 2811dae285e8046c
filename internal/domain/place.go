// Package domain contains the core data types for the travel log.
// It is imported by every other internal package (tracker, repo, service,
// handler, client) and depends only on google/uuid.
package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// Status says whether a place has been visited or is on the wishlist.
type Status string

const (
	StatusVisited  Status = "visited"
	StatusWishlist Status = "wishlist"
)

// ParseStatus maps free input onto the two statuses.
// Anything that is not exactly "visited" becomes StatusWishlist.
func ParseStatus(s string) Status {
	if s == string(StatusVisited) {
		return StatusVisited
	}
	return StatusWishlist
}

// Coords is a latitude/longitude pair.
type Coords struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DefaultCoords is the map position used before the user clicks anywhere (Budapest).
var DefaultCoords = Coords{Lat: 47.4979, Lng: 19.0402}

// Place is a single tracked location. The JSON field names are the
// interchange format used by local storage and by import/export files.
//
// ID is opaque: a client-generated UUID for local records, replaced by the
// remote store's identifier once a record is persisted remotely.
type Place struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Country     string   `json:"country"`
	CountryCode string   `json:"countryCode,omitempty"`
	City        string   `json:"city"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Status      Status   `json:"status"`
	DateVisited string   `json:"dateVisited"`
	Rating      int      `json:"rating"`
	Notes       string   `json:"notes"`
	Tags        []string `json:"tags"`
}

// Validate enforces the one hard rule of the model: the trimmed name must be non-empty.
func (p Place) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	return nil
}

// PlaceInput is what the add-place form supplies.
// Lat and Lng are nil when the user left them blank.
type PlaceInput struct {
	Name        string
	Country     string
	CountryCode string
	City        string
	Lat         *float64
	Lng         *float64
	Status      Status
	DateVisited string
	Rating      int
	Notes       string
	Tags        []string
}

// NewPlace builds a Place from form input and assigns it a fresh local identifier.
// Missing or non-finite coordinates fall back to at (the last-clicked map position).
// Returns ErrValidation for an empty name, a missing status, or a rating outside 0..5.
func NewPlace(in PlaceInput, at Coords) (Place, error) {
	p := Place{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Country:     strings.TrimSpace(in.Country),
		CountryCode: strings.ToUpper(strings.TrimSpace(in.CountryCode)),
		City:        strings.TrimSpace(in.City),
		Lat:         coordOr(in.Lat, at.Lat),
		Lng:         coordOr(in.Lng, at.Lng),
		Status:      ParseStatus(string(in.Status)),
		DateVisited: strings.TrimSpace(in.DateVisited),
		Rating:      in.Rating,
		Notes:       in.Notes,
		Tags:        CleanTags(in.Tags),
	}
	if err := p.Validate(); err != nil {
		return Place{}, err
	}
	if in.Status == "" {
		return Place{}, fmt.Errorf("%w: status is required", ErrValidation)
	}
	if in.Rating < 0 || in.Rating > 5 {
		return Place{}, fmt.Errorf("%w: rating must be between 0 and 5", ErrValidation)
	}
	return p, nil
}

// CleanTags trims every tag and drops empty ones. Order and duplicates are kept.
// The result is never nil.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// SplitTags parses a comma-separated tag list ("lake, hiking").
func SplitTags(s string) []string {
	return CleanTags(strings.Split(s, ","))
}

func coordOr(v *float64, fallback float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return fallback
	}
	return *v
}
