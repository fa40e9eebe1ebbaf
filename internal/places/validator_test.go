package places

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripweaver/tripweaver/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePlacesServer struct {
	// textQuery -> response places (city lookups are answered separately)
	responses map[string][]map[string]any
	cityHits  atomic.Int32

	mu      sync.Mutex
	queries []string
}

func (f *fakePlacesServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		query, _ := req["textQuery"].(string)

		if req["includedType"] == "locality" {
			f.cityHits.Add(1)
			json.NewEncoder(w).Encode(map[string]any{
				"places": []map[string]any{{
					"location": map[string]any{"latitude": 37.5665, "longitude": 126.978},
				}},
			})
			return
		}

		f.mu.Lock()
		f.queries = append(f.queries, query)
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"places": f.responses[query]})
	}
}

func snailHousePlace() map[string]any {
	return map[string]any{
		"id":               "gplace-1",
		"displayName":      map[string]any{"text": "Euljiro Snail House"},
		"formattedAddress": "Euljiro 3-ga, Jung-gu, Seoul",
		"location":         map[string]any{"latitude": 37.566, "longitude": 126.991},
		"types":            []string{"restaurant", "point_of_interest"},
		"primaryType":      "restaurant",
		"googleMapsUri":    "https://maps.google.com/?cid=42",
		"rating":           4.4,
		"userRatingCount":  321,
		"priceLevel":       "PRICE_LEVEL_MODERATE",
		"websiteUri":       "https://snail.example.com",
		"regularOpeningHours": map[string]any{
			"periods": []map[string]any{
				{
					"open":  map[string]any{"day": 1, "hour": 11, "minute": 0},
					"close": map[string]any{"day": 1, "hour": 22, "minute": 0},
				},
				{
					"open":  map[string]any{"day": 0, "hour": 12, "minute": 30},
					"close": map[string]any{"day": 0, "hour": 20, "minute": 0},
				},
			},
			"weekdayDescriptions": []string{"Monday: 11:00 - 22:00"},
		},
	}
}

func summary() types.PoiSummary {
	return types.PoiSummary{
		Name:        "Euljiro Snail House",
		Category:    types.CategoryRestaurant,
		Description: "Old-school snail restaurant",
		Summary:     "Great for solo food tours",
		Highlights:  []string{"snails", "local vibe"},
	}
}

func TestMap(t *testing.T) {
	t.Run("validates and enriches a hit", func(t *testing.T) {
		fake := &fakePlacesServer{responses: map[string][]map[string]any{
			"Euljiro Snail House Seoul": {snailHousePlace()},
		}}
		server := httptest.NewServer(fake.handler(t))
		defer server.Close()

		v := NewValidator("key", testLogger()).WithBaseURL(server.URL)
		rec, err := v.Map(context.Background(), summary(), "Seoul", "https://blog.example.com/euljiro", true)
		require.NoError(t, err)
		require.NotNil(t, rec)

		assert.Equal(t, types.GeneratePoiID("https://blog.example.com/euljiro"), rec.ID)
		assert.Equal(t, "Euljiro Snail House", rec.Name)
		assert.Equal(t, types.CategoryRestaurant, rec.Category)
		assert.Equal(t, "Seoul", rec.City)
		assert.Equal(t, "Euljiro 3-ga, Jung-gu, Seoul", rec.Address)
		assert.Equal(t, "gplace-1", rec.GooglePlaceID)
		require.NotNil(t, rec.Latitude)
		assert.InDelta(t, 37.566, *rec.Latitude, 1e-9)
		require.NotNil(t, rec.Rating)
		assert.InDelta(t, 4.4, *rec.Rating, 1e-9)
		assert.NotEmpty(t, rec.RawText)

		require.NotNil(t, rec.OpeningHours)
		monday := rec.OpeningHours.HoursFor(types.Monday)
		require.NotNil(t, monday)
		assert.False(t, monday.IsClosed)
		require.Len(t, monday.Slots, 1)
		assert.Equal(t, "11:00", monday.Slots[0].OpenTime)

		sunday := rec.OpeningHours.HoursFor(types.Sunday)
		require.NotNil(t, sunday)
		assert.False(t, sunday.IsClosed, "API day 0 maps to ISO Sunday")

		tuesday := rec.OpeningHours.HoursFor(types.Tuesday)
		require.NotNil(t, tuesday)
		assert.True(t, tuesday.IsClosed, "days without periods are closed")
	})

	t.Run("same source URL yields same poi_id", func(t *testing.T) {
		fake := &fakePlacesServer{responses: map[string][]map[string]any{
			"Euljiro Snail House Seoul": {snailHousePlace()},
		}}
		server := httptest.NewServer(fake.handler(t))
		defer server.Close()

		v := NewValidator("key", testLogger()).WithBaseURL(server.URL)
		first, err := v.Map(context.Background(), summary(), "Seoul", "https://blog.example.com/euljiro", true)
		require.NoError(t, err)
		second, err := v.Map(context.Background(), summary(), "Seoul", "https://blog.example.com/euljiro", true)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("falls back to name-only query", func(t *testing.T) {
		fake := &fakePlacesServer{responses: map[string][]map[string]any{
			"Euljiro Snail House": {snailHousePlace()},
		}}
		server := httptest.NewServer(fake.handler(t))
		defer server.Close()

		v := NewValidator("key", testLogger()).WithBaseURL(server.URL)
		rec, err := v.Map(context.Background(), summary(), "Seoul", "", true)
		require.NoError(t, err)
		require.NotNil(t, rec)

		assert.Equal(t, []string{"Euljiro Snail House Seoul", "Euljiro Snail House"}, fake.queries)
		// No source URL: the ID derives from the synthesized one.
		assert.Equal(t, types.GeneratePoiID(types.SynthesizeSourceURL("Euljiro Snail House", "Seoul")), rec.ID)
	})

	t.Run("no match returns nil without raise flag", func(t *testing.T) {
		fake := &fakePlacesServer{responses: map[string][]map[string]any{}}
		server := httptest.NewServer(fake.handler(t))
		defer server.Close()

		v := NewValidator("key", testLogger()).WithBaseURL(server.URL)
		rec, err := v.Map(context.Background(), summary(), "Seoul", "", false)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("no match raises validation error with raise flag", func(t *testing.T) {
		fake := &fakePlacesServer{responses: map[string][]map[string]any{}}
		server := httptest.NewServer(fake.handler(t))
		defer server.Close()

		v := NewValidator("key", testLogger()).WithBaseURL(server.URL)
		_, err := v.Map(context.Background(), summary(), "Seoul", "", true)
		require.Error(t, err)

		var validationErr *types.PoiValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("missing api key fails validation", func(t *testing.T) {
		v := NewValidator("", testLogger())
		rec, err := v.Map(context.Background(), summary(), "Seoul", "", false)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("city location is resolved once", func(t *testing.T) {
		fake := &fakePlacesServer{responses: map[string][]map[string]any{
			"Euljiro Snail House Seoul": {snailHousePlace()},
		}}
		server := httptest.NewServer(fake.handler(t))
		defer server.Close()

		v := NewValidator("key", testLogger()).WithBaseURL(server.URL)
		_, err := v.Map(context.Background(), summary(), "Seoul", "", true)
		require.NoError(t, err)
		_, err = v.Map(context.Background(), summary(), "Seoul", "", true)
		require.NoError(t, err)

		assert.Equal(t, int32(1), fake.cityHits.Load())
	})
}

func TestMapCategory(t *testing.T) {
	tests := []struct {
		primary string
		types   []string
		want    types.PoiCategory
	}{
		{"cafe", nil, types.CategoryCafe},
		{"", []string{"museum"}, types.CategoryAttraction},
		{"unknown", []string{"also_unknown"}, types.CategoryOther},
		{"lodging", []string{"restaurant"}, types.CategoryAccommodation},
		{"", []string{"bar"}, types.CategoryEntertainment},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapCategory(tt.primary, tt.types))
	}
}

func TestMapBatch(t *testing.T) {
	fake := &fakePlacesServer{responses: map[string][]map[string]any{
		"Euljiro Snail House Seoul": {snailHousePlace()},
	}}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	v := NewValidator("key", testLogger()).WithBaseURL(server.URL)

	unknown := types.PoiSummary{Name: "Ghost Venue", Category: types.CategoryOther}
	got := v.MapBatch(context.Background(), []types.PoiSummary{summary(), unknown}, "Seoul")

	require.Len(t, got, 1, "failed validations are dropped")
	assert.Equal(t, "Euljiro Snail House", got[0].Name)
}
