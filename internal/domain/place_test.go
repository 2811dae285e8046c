package domain_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/travel-log/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestNewPlace_OK(t *testing.T) {
	in := domain.PlaceInput{
		Name:        " Lake Bled ",
		CountryCode: "si",
		Lat:         ptr(46.3),
		Lng:         ptr(14.1),
		Status:      domain.StatusVisited,
		Rating:      5,
		Tags:        []string{" lake", "", "lake "},
	}

	got, err := domain.NewPlace(in, domain.DefaultCoords)

	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "Lake Bled", got.Name)
	assert.Equal(t, "SI", got.CountryCode)
	assert.Equal(t, 46.3, got.Lat)
	assert.Equal(t, []string{"lake", "lake"}, got.Tags)
}

func TestNewPlace_MissingCoords_UseLastClicked(t *testing.T) {
	clicked := domain.Coords{Lat: 10, Lng: 20}
	in := domain.PlaceInput{Name: "X", Status: domain.StatusWishlist, Lat: ptr(math.NaN())}

	got, err := domain.NewPlace(in, clicked)

	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Lat)
	assert.Equal(t, 20.0, got.Lng)
}

func TestNewPlace_Validation(t *testing.T) {
	cases := map[string]domain.PlaceInput{
		"empty name":      {Name: "  ", Status: domain.StatusVisited},
		"missing status":  {Name: "X"},
		"rating too high": {Name: "X", Status: domain.StatusVisited, Rating: 6},
		"rating negative": {Name: "X", Status: domain.StatusVisited, Rating: -1},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := domain.NewPlace(in, domain.DefaultCoords)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestNewPlace_UnknownStatus_Wishlist(t *testing.T) {
	got, err := domain.NewPlace(domain.PlaceInput{Name: "X", Status: "maybe"}, domain.DefaultCoords)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWishlist, got.Status)
}

func TestSplitTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b c", "a"}, domain.SplitTags(" a,b c , ,a"))
	assert.Equal(t, []string{}, domain.SplitTags(""))
}

func TestPlacePatch_NormalizeAndApply(t *testing.T) {
	status := domain.Status("nope")
	patch, err := domain.PlacePatch{
		Country:     ptr(" Italy "),
		CountryCode: ptr("it"),
		Status:      &status,
		Tags:        &[]string{" food ", ""},
	}.Normalize()
	require.NoError(t, err)

	orig := domain.Place{ID: "p1", Name: "Rome", Status: domain.StatusVisited, Rating: 3}
	got := patch.Apply(orig)

	assert.Equal(t, "p1", got.ID)
	assert.Equal(t, "Rome", got.Name)
	assert.Equal(t, "Italy", got.Country)
	assert.Equal(t, "IT", got.CountryCode)
	assert.Equal(t, domain.StatusWishlist, got.Status)
	assert.Equal(t, 3, got.Rating)
	assert.Equal(t, []string{"food"}, got.Tags)
}

func TestPlacePatch_EmptyName_Rejected(t *testing.T) {
	_, err := domain.PlacePatch{Name: ptr(" ")}.Normalize()
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPlacePatch_IsEmpty(t *testing.T) {
	assert.True(t, domain.PlacePatch{}.IsEmpty())
	assert.False(t, domain.PlacePatch{Rating: ptr(0)}.IsEmpty())
}

func TestPlacePatch_JSONContainsOnlyPresentFields(t *testing.T) {
	data, err := json.Marshal(domain.PlacePatch{Notes: ptr(""), CountryCode: ptr("FR")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"notes":"","country_code":"FR"}`, string(data))
}

func TestPlaceRow_TagsAsNativeArrayOrEncodedString(t *testing.T) {
	cases := map[string]string{
		"native":  `{"tags":["a","b"]}`,
		"encoded": `{"tags":"[\"a\",\"b\"]"}`,
		"csv":     `{"tags":"a, b"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var row domain.PlaceRow
			require.NoError(t, json.Unmarshal([]byte(body), &row))
			assert.Equal(t, domain.TagList{"a", "b"}, row.Tags)
		})
	}
}

func TestPlaceRow_NullTags(t *testing.T) {
	var row domain.PlaceRow
	require.NoError(t, json.Unmarshal([]byte(`{"tags":null}`), &row))
	assert.Empty(t, domain.RowToPlace(row).Tags)
	assert.NotNil(t, domain.RowToPlace(row).Tags)
}

func TestRowToPlace_TruncatesDate(t *testing.T) {
	row := domain.PlaceRow{
		ID: "r1", Name: "Rome", Status: "visited", CountryCode: "it",
		DateVisited: "2024-05-01T00:00:00+00:00", CreatedAt: time.Now(),
	}

	got := domain.RowToPlace(row)

	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, "2024-05-01", got.DateVisited)
	assert.Equal(t, "IT", got.CountryCode)
	assert.Equal(t, domain.StatusVisited, got.Status)
}

func TestPlaceToRow_RowToPlace_Lossless(t *testing.T) {
	p := domain.Place{
		ID: "srv-1", Name: "Rome", Country: "Italy", CountryCode: "IT", City: "Rome",
		Lat: 41.9, Lng: 12.5, Status: domain.StatusVisited, DateVisited: "2024-05-01",
		Rating: 4, Notes: "pasta", Tags: []string{"food", "food"},
	}

	row := domain.PlaceToRow(p, "owner-1")
	assert.Empty(t, row.ID, "the store assigns the identifier")
	assert.Equal(t, "owner-1", row.OwnerID)

	row.ID = p.ID
	assert.Equal(t, p, domain.RowToPlace(row))
}

func TestDatePart(t *testing.T) {
	assert.Equal(t, "2024-05-01", domain.DatePart("2024-05-01"))
	assert.Equal(t, "2024-05-01", domain.DatePart("2024-05-01 10:00:00"))
	assert.Equal(t, "", domain.DatePart(""))
}
