package domain

import (
	"fmt"
	"strings"
)

// PlacePatch is a partial update: only non-nil fields are changed.
// It is also the wire document sent to the remote store, which is why the
// JSON names follow the row convention rather than the interchange format.
type PlacePatch struct {
	Name        *string   `json:"name,omitempty"`
	Country     *string   `json:"country,omitempty"`
	CountryCode *string   `json:"country_code,omitempty"`
	City        *string   `json:"city,omitempty"`
	Lat         *float64  `json:"lat,omitempty"`
	Lng         *float64  `json:"lng,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	DateVisited *string   `json:"date_visited,omitempty"`
	Rating      *int      `json:"rating,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (pp PlacePatch) IsEmpty() bool {
	return pp.Name == nil && pp.Country == nil && pp.CountryCode == nil && pp.City == nil &&
		pp.Lat == nil && pp.Lng == nil && pp.Status == nil && pp.DateVisited == nil &&
		pp.Rating == nil && pp.Notes == nil && pp.Tags == nil
}

// Normalize returns a copy with the same cleaning rules NewPlace applies:
// trimmed strings, uppercased country code, a valid status, clean tags.
// Returns ErrValidation when the patch would blank out the name.
func (pp PlacePatch) Normalize() (PlacePatch, error) {
	out := pp
	if pp.Name != nil {
		name := strings.TrimSpace(*pp.Name)
		if name == "" {
			return PlacePatch{}, fmt.Errorf("%w: name is required", ErrValidation)
		}
		out.Name = &name
	}
	out.Country = trimmed(pp.Country)
	out.City = trimmed(pp.City)
	out.DateVisited = trimmed(pp.DateVisited)
	if pp.CountryCode != nil {
		cc := strings.ToUpper(strings.TrimSpace(*pp.CountryCode))
		out.CountryCode = &cc
	}
	if pp.Status != nil {
		s := ParseStatus(string(*pp.Status))
		out.Status = &s
	}
	if pp.Tags != nil {
		tags := CleanTags(*pp.Tags)
		out.Tags = &tags
	}
	return out, nil
}

// Apply returns p with every field present in the patch overwritten.
// The identifier is never touched.
func (pp PlacePatch) Apply(p Place) Place {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.Country != nil {
		p.Country = *pp.Country
	}
	if pp.CountryCode != nil {
		p.CountryCode = *pp.CountryCode
	}
	if pp.City != nil {
		p.City = *pp.City
	}
	if pp.Lat != nil {
		p.Lat = *pp.Lat
	}
	if pp.Lng != nil {
		p.Lng = *pp.Lng
	}
	if pp.Status != nil {
		p.Status = *pp.Status
	}
	if pp.DateVisited != nil {
		p.DateVisited = *pp.DateVisited
	}
	if pp.Rating != nil {
		p.Rating = *pp.Rating
	}
	if pp.Notes != nil {
		p.Notes = *pp.Notes
	}
	if pp.Tags != nil {
		p.Tags = append([]string{}, (*pp.Tags)...)
	}
	return p
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
