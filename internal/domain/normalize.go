package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// NormalizeOptions controls the fallbacks used by NormalizeRaw.
type NormalizeOptions struct {
	// DefaultCoords replaces missing or unparseable coordinates.
	// The zero value yields 0,0 which is what bulk import uses.
	DefaultCoords Coords
}

// NormalizeRaw turns one loosely-typed object (as decoded from a JSON file)
// into a Place. It never fails: every field has a safe default, so partial or
// garbage data still produces a usable record. A missing id gets a fresh one.
// The result may have an empty name; use NormalizePlace to reject that.
func NormalizeRaw(raw map[string]any, opts NormalizeOptions) Place {
	id := strings.TrimSpace(toString(raw["id"]))
	if id == "" {
		id = uuid.NewString()
	}
	lat, ok := toFloat(raw["lat"])
	if !ok {
		lat = opts.DefaultCoords.Lat
	}
	lng, ok := toFloat(raw["lng"])
	if !ok {
		lng = opts.DefaultCoords.Lng
	}
	rating, _ := toFloat(raw["rating"])

	return Place{
		ID:          id,
		Name:        strings.TrimSpace(toString(raw["name"])),
		Country:     strings.TrimSpace(toString(raw["country"])),
		CountryCode: strings.ToUpper(strings.TrimSpace(toString(raw["countryCode"]))),
		City:        strings.TrimSpace(toString(raw["city"])),
		Lat:         lat,
		Lng:         lng,
		Status:      ParseStatus(toString(raw["status"])),
		DateVisited: strings.TrimSpace(toString(raw["dateVisited"])),
		Rating:      toRating(rating),
		Notes:       toString(raw["notes"]),
		Tags:        toTags(raw["tags"]),
	}
}

// NormalizePlace is NormalizeRaw for single-record creation paths:
// it returns ErrValidation when the name is empty after trimming.
func NormalizePlace(raw map[string]any, opts NormalizeOptions) (Place, error) {
	p := NormalizeRaw(raw, opts)
	if err := p.Validate(); err != nil {
		return Place{}, err
	}
	return p, nil
}

// ParseImport decodes an import file. The top level must be a JSON array;
// anything else fails with ErrParse. Each element is normalized one-to-one
// and never dropped: elements that are not objects become all-default places.
func ParseImport(data []byte) ([]Place, error) {
	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if items == nil {
		// "null" decodes without error but is not an array.
		return nil, fmt.Errorf("%w: top-level value is not an array", ErrParse)
	}
	places := make([]Place, 0, len(items))
	for _, item := range items {
		obj, _ := item.(map[string]any)
		places = append(places, NormalizeRaw(obj, NormalizeOptions{}))
	}
	return places, nil
}

// ExportPlaces serializes the collection, in order, as pretty-printed UTF-8 JSON.
func ExportPlaces(places []Place) ([]byte, error) {
	out := make([]Place, len(places))
	for i, p := range places {
		if p.Tags == nil {
			p.Tags = []string{}
		}
		out[i] = p
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("domain.ExportPlaces: %w", err)
	}
	return buf.Bytes(), nil
}

// toString renders a decoded JSON value the way a lenient form would.
func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// toFloat coerces numbers and numeric strings; ok is false for anything
// else, including NaN and infinities.
func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case bool:
		if x {
			f = 1
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toTags accepts either a sequence or a comma-separated string.
// toRating truncates r toward zero. Values that do not fit the INTEGER
// rating column become 0, like any other unusable rating.
func toRating(r float64) int {
	if math.IsNaN(r) || r > math.MaxInt32 || r < math.MinInt32 {
		return 0
	}
	return int(r)
}

func toTags(v any) []string {
	switch x := v.(type) {
	case []any:
		tags := make([]string, 0, len(x))
		for _, t := range x {
			tags = append(tags, toString(t))
		}
		return CleanTags(tags)
	case []string:
		return CleanTags(x)
	case string:
		return SplitTags(x)
	default:
		return []string{}
	}
}
