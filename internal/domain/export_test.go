package domain_test

import (
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/travel-log/internal/domain"
)

func TestExportCSV(t *testing.T) {
	places := []domain.Place{
		{ID: "1", Name: "Kyoto, Japan", Country: "Japan", CountryCode: "JP", Lat: 35.0116, Lng: 135.7681,
			Status: domain.StatusVisited, DateVisited: "2023-04-02", Rating: 5, Notes: `said "wow"`, Tags: []string{"temples", "food"}},
		{ID: "2", Name: "Oslo", Status: domain.StatusWishlist, Tags: []string{}},
	}

	data, err := domain.ExportCSV(places)
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, domain.CSVHeaders, records[0])
	assert.Equal(t, []string{
		"1", "Kyoto, Japan", "Japan", "JP", "", "35.0116", "135.7681",
		"visited", "2023-04-02", "5", `said "wow"`, "temples|food",
	}, records[1])
	assert.Equal(t, "wishlist", records[2][7])
	assert.Empty(t, records[2][11])
}

func TestExportCSV_Empty(t *testing.T) {
	data, err := domain.ExportCSV(nil)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(domain.CSVHeaders, ",")+"\n", string(data))
}
