package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PlaceRow is a place as the remote row store holds it: snake_case names,
// an owner column, and a creation timestamp used for ordering.
type PlaceRow struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Country     string    `json:"country"`
	CountryCode string    `json:"country_code"`
	City        string    `json:"city"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	Status      string    `json:"status"`
	DateVisited string    `json:"date_visited"`
	Rating      int       `json:"rating"`
	Notes       string    `json:"notes"`
	Tags        TagList   `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
}

// TagList decodes tags sent either as a native JSON array or as a string
// holding a JSON-encoded array. It always encodes as a native array.
type TagList []string

// UnmarshalJSON implements json.Unmarshaler.
func (t *TagList) UnmarshalJSON(data []byte) error {
	tags, err := DecodeTags(data)
	if err != nil {
		return err
	}
	*t = tags
	return nil
}

// MarshalJSON implements json.Marshaler. A nil list encodes as [].
func (t TagList) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(t))
}

// DecodeTags parses a tags value from the row store. Accepted shapes:
// null, ["a","b"], "[\"a\",\"b\"]" and, as a last resort, "a, b".
func DecodeTags(data []byte) (TagList, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return TagList{}, nil
	}
	if strings.HasPrefix(trimmed, "\"") {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("domain.DecodeTags: %w", err)
		}
		if strings.HasPrefix(strings.TrimSpace(s), "[") {
			return DecodeTags([]byte(s))
		}
		return TagList(SplitTags(s)), nil
	}
	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("domain.DecodeTags: %w", err)
	}
	tags := make([]string, 0, len(items))
	for _, it := range items {
		tags = append(tags, toString(it))
	}
	return TagList(CleanTags(tags)), nil
}

// RowToPlace adapts a row to the in-memory model. The date is cut to its
// calendar part ("2025-10-23T00:00:00+00:00" becomes "2025-10-23").
func RowToPlace(r PlaceRow) Place {
	tags := []string(r.Tags)
	if tags == nil {
		tags = []string{}
	}
	return Place{
		ID:          r.ID,
		Name:        r.Name,
		Country:     r.Country,
		CountryCode: strings.ToUpper(strings.TrimSpace(r.CountryCode)),
		City:        r.City,
		Lat:         r.Lat,
		Lng:         r.Lng,
		Status:      ParseStatus(r.Status),
		DateVisited: DatePart(r.DateVisited),
		Rating:      r.Rating,
		Notes:       r.Notes,
		Tags:        tags,
	}
}

// PlaceToRow adapts a place for insertion under ownerID.
// The identifier is dropped: the store assigns its own.
func PlaceToRow(p Place, ownerID string) PlaceRow {
	return PlaceRow{
		OwnerID:     ownerID,
		Name:        p.Name,
		Country:     p.Country,
		CountryCode: p.CountryCode,
		City:        p.City,
		Lat:         p.Lat,
		Lng:         p.Lng,
		Status:      string(ParseStatus(string(p.Status))),
		DateVisited: p.DateVisited,
		Rating:      p.Rating,
		Notes:       p.Notes,
		Tags:        TagList(CleanTags(p.Tags)),
	}
}

// DatePart strips a time-of-day suffix from an ISO date.
func DatePart(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i >= 0 {
		return s[:i]
	}
	return s
}
