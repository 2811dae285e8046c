// Package geo attributes places to ISO 3166-1 alpha-2 country codes using a
// country boundary dataset (GeoJSON), for visited-country counts and map shading.
package geo

import (
	"encoding/json"
	"fmt"
	"strings"
)

// codeProperties are the property names under which boundary datasets have
// published the alpha-2 code over the years. The first non-empty one wins.
var codeProperties = []string{"ISO3166-1-Alpha-2", "ISO_A2", "iso_a2", "ISO2"}

// nameProperties are the property names tried for the country name.
var nameProperties = []string{"name", "NAME", "ADMIN"}

// Feature is one country polygon. Geometry is kept raw: only the map
// renderer needs it.
type Feature struct {
	Type       string          `json:"type"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry,omitempty"`
}

// FeatureCollection is the top-level GeoJSON document.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// ParseFeatureCollection decodes a GeoJSON document.
func ParseFeatureCollection(data []byte) (FeatureCollection, error) {
	var fc FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return FeatureCollection{}, fmt.Errorf("geo.ParseFeatureCollection: %w", err)
	}
	return fc, nil
}

// FeatureCode returns the uppercase alpha-2 code of a feature, or "" when
// none of the known property spellings carries one.
func FeatureCode(props map[string]any) string {
	return strings.ToUpper(firstProperty(props, codeProperties))
}

// FeatureName returns the country name of a feature, or "".
func FeatureName(props map[string]any) string {
	return firstProperty(props, nameProperties)
}

func firstProperty(props map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := props[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// Index maps lowercase country names and lowercase alpha-2 codes to the
// uppercase alpha-2 code. A nil *Index is a valid, empty index.
type Index struct {
	codes map[string]string
}

// BuildIndex builds the lookup table from a boundary dataset.
// Features without a code are skipped.
func BuildIndex(fc FeatureCollection) *Index {
	ix := &Index{codes: make(map[string]string, 2*len(fc.Features))}
	for _, f := range fc.Features {
		code := FeatureCode(f.Properties)
		if code == "" {
			continue
		}
		if name := strings.ToLower(FeatureName(f.Properties)); name != "" {
			ix.codes[name] = code
		}
		ix.codes[strings.ToLower(code)] = code
	}
	return ix
}

// Lookup finds the code for a country name or code, case-insensitively.
func (ix *Index) Lookup(key string) (string, bool) {
	if ix == nil {
		return "", false
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", false
	}
	code, ok := ix.codes[key]
	return code, ok
}

// Len returns the number of keys in the index.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.codes)
}

// Loaded reports whether the index can be used for code-based attribution.
func (ix *Index) Loaded() bool {
	return ix.Len() > 0
}
