// Package search looks places up by name against a Nominatim geocoder and
// debounces search-as-you-type so only the latest query's results are shown.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/pkordes/travel-log/internal/domain"
)

// DefaultNominatimURL is the public OpenStreetMap geocoder.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

const resultLimit = 6

// Candidate is one search hit, already shaped like a place.
type Candidate struct {
	Name        string  `json:"name"`
	DisplayName string  `json:"displayName"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

// PlaceInput pre-fills the add-place form from the candidate.
func (c Candidate) PlaceInput(status domain.Status) domain.PlaceInput {
	lat, lng := c.Lat, c.Lng
	return domain.PlaceInput{
		Name:        c.Name,
		Country:     c.Country,
		CountryCode: c.CountryCode,
		City:        c.City,
		Lat:         &lat,
		Lng:         &lng,
		Status:      status,
		Tags:        []string{},
	}
}

type nominatimResult struct {
	DisplayName string           `json:"display_name"`
	Lat         string           `json:"lat"`
	Lon         string           `json:"lon"`
	Address     nominatimAddress `json:"address"`
}

type nominatimAddress struct {
	Name        string `json:"name"`
	City        string `json:"city"`
	Town        string `json:"town"`
	Village     string `json:"village"`
	Hamlet      string `json:"hamlet"`
	State       string `json:"state"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
}

func (r nominatimResult) candidate() Candidate {
	a := r.Address
	name := a.Name
	if name == "" {
		name = r.DisplayName
	}
	name, _, _ = strings.Cut(name, ",")
	if name == "" {
		name = r.DisplayName
	}
	lat, _ := strconv.ParseFloat(r.Lat, 64)
	lng, _ := strconv.ParseFloat(r.Lon, 64)
	return Candidate{
		Name:        name,
		DisplayName: r.DisplayName,
		Country:     a.Country,
		CountryCode: strings.ToUpper(a.CountryCode),
		City:        firstNonEmpty(a.City, a.Town, a.Village, a.Hamlet, a.State),
		Lat:         lat,
		Lng:         lng,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// NominatimClient queries a Nominatim instance. Responses are cached per
// normalized query and outbound requests are rate limited, as the public
// instance's usage policy requires.
type NominatimClient struct {
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	cache     *cache.Cache
	userAgent string
	log       *slog.Logger
}

// NominatimOption configures a NominatimClient.
type NominatimOption func(*NominatimClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) NominatimOption {
	return func(n *NominatimClient) { n.client = c }
}

// WithLimiter replaces the default one-request-per-second limiter.
func WithLimiter(l *rate.Limiter) NominatimOption {
	return func(n *NominatimClient) { n.limiter = l }
}

// WithUserAgent sets the User-Agent sent upstream.
func WithUserAgent(ua string) NominatimOption {
	return func(n *NominatimClient) { n.userAgent = ua }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) NominatimOption {
	return func(n *NominatimClient) { n.log = l }
}

// NewNominatimClient constructs a client for baseURL.
func NewNominatimClient(baseURL string, opts ...NominatimOption) *NominatimClient {
	n := &NominatimClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		cache:     cache.New(10*time.Minute, 20*time.Minute),
		userAgent: "travel-log/1.0",
		log:       slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n
}

// Search returns at most six candidates for query. A blank query returns
// no candidates without calling upstream.
func (n *NominatimClient) Search(ctx context.Context, query string) ([]Candidate, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return []Candidate{}, nil
	}
	key := strings.ToLower(q)
	if cached, ok := n.cache.Get(key); ok {
		return slices.Clone(cached.([]Candidate)), nil
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("search.NominatimClient.Search: %w", err)
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("limit", strconv.Itoa(resultLimit))
	params.Set("q", q)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("search.NominatimClient.Search: %w", err)
	}
	req.Header.Set("Accept-Language", "en")
	req.Header.Set("User-Agent", n.userAgent)

	start := time.Now()
	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search.NominatimClient.Search: %w: %w", domain.ErrRemote, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search.NominatimClient.Search: %w: status %d", domain.ErrRemote, resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("search.NominatimClient.Search: %w: decode: %w", domain.ErrRemote, err)
	}
	out := make([]Candidate, 0, len(results))
	for _, r := range results {
		out = append(out, r.candidate())
	}
	n.log.DebugContext(ctx, "nominatim search", "query", q, "results", len(out), "duration_ms", time.Since(start).Milliseconds())

	n.cache.Set(key, slices.Clone(out), cache.DefaultExpiration)
	return out, nil
}
