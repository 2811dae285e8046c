package geo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultBoundariesURL is the country polygon dataset fetched at startup.
const DefaultBoundariesURL = "https://raw.githubusercontent.com/datasets/geo-countries/master/data/countries.geojson"

// maxDatasetBytes caps the download; the upstream file is about 25 MB.
const maxDatasetBytes = 64 << 20

// Loader fetches the boundary dataset once and turns it into an Index.
type Loader struct {
	url    string
	client *http.Client
	log    *slog.Logger
}

// NewLoader constructs a Loader for url. A nil client gets a 30 s timeout.
func NewLoader(url string, client *http.Client, log *slog.Logger) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Loader{url: url, client: client, log: log}
}

// Fetch downloads and decodes the dataset.
func (l *Loader) Fetch(ctx context.Context) (FeatureCollection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return FeatureCollection{}, fmt.Errorf("geo.Loader.Fetch: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return FeatureCollection{}, fmt.Errorf("geo.Loader.Fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return FeatureCollection{}, fmt.Errorf("geo.Loader.Fetch: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDatasetBytes))
	if err != nil {
		return FeatureCollection{}, fmt.Errorf("geo.Loader.Fetch: read body: %w", err)
	}
	return ParseFeatureCollection(data)
}

// LoadIndex fetches the dataset and builds the index.
func (l *Loader) LoadIndex(ctx context.Context) (*Index, error) {
	fc, err := l.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	ix := BuildIndex(fc)
	l.log.InfoContext(ctx, "boundary index loaded", "features", len(fc.Features), "keys", ix.Len())
	return ix, nil
}
