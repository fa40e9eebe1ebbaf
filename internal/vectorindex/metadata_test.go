package vectorindex

import (
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripweaver/tripweaver/internal/types"
)

func sampleRecord() types.PoiRecord {
	lat, lon := 37.5665, 126.978
	rating := 4.5
	count := 1234
	return types.PoiRecord{
		ID:          types.GeneratePoiID("https://example.com/euljiro"),
		Name:        "Euljiro Snail House",
		Category:    types.CategoryRestaurant,
		Description: "Classic snail restaurant in a back alley",
		City:        "Seoul",
		Address:     "Euljiro 3-ga, Jung-gu, Seoul",
		Source:      types.SourceWeb,
		SourceURL:   "https://example.com/euljiro",
		RawText:     "Euljiro Snail House. Classic snail restaurant in a back alley",
		CreatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),

		GooglePlaceID: "place-123",
		Latitude:      &lat,
		Longitude:     &lon,
		GoogleMapsURI: "https://maps.google.com/?cid=1",
		Types:         []string{"restaurant", "food"},
		PrimaryType:   "restaurant",
		Rating:        &rating,
		RatingCount:   &count,
		PriceLevel:    "PRICE_LEVEL_MODERATE",
		PriceRange:    "10000 KRW ~ 30000 KRW",
		WebsiteURI:    "https://snailhouse.example.com",
		PhoneNumber:   "+82 2-1234-5678",
		OpeningHours: &types.OpeningHours{
			Periods: []types.DailyOpeningHours{
				{Day: types.Monday, Slots: []types.TimeSlot{{OpenTime: "11:00", CloseTime: "22:00"}}},
				{Day: types.Sunday, IsClosed: true},
			},
			RawText: []string{"Monday: 11:00 - 22:00", "Sunday: Closed"},
		},
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	rec := sampleRecord()

	// Encode through the same value conversion the store applies, then decode.
	restored := recordFromPayload(qdrant.NewValueMap(buildPayload(rec)))

	assert.Equal(t, rec.ID, restored.ID)
	assert.Equal(t, rec.Name, restored.Name)
	assert.Equal(t, rec.Category, restored.Category)
	assert.Equal(t, rec.Description, restored.Description)
	assert.Equal(t, rec.City, restored.City)
	assert.Equal(t, rec.Address, restored.Address)
	assert.Equal(t, rec.Source, restored.Source)
	assert.Equal(t, rec.SourceURL, restored.SourceURL)
	assert.Equal(t, rec.RawText, restored.RawText)
	assert.True(t, rec.CreatedAt.Equal(restored.CreatedAt))

	assert.Equal(t, rec.GooglePlaceID, restored.GooglePlaceID)
	require.NotNil(t, restored.Latitude)
	assert.InDelta(t, *rec.Latitude, *restored.Latitude, 1e-9)
	require.NotNil(t, restored.Longitude)
	assert.InDelta(t, *rec.Longitude, *restored.Longitude, 1e-9)
	require.NotNil(t, restored.Rating)
	assert.InDelta(t, *rec.Rating, *restored.Rating, 1e-9)
	require.NotNil(t, restored.RatingCount)
	assert.Equal(t, *rec.RatingCount, *restored.RatingCount)

	// List and nested fields survive the JSON-encoded payload.
	assert.Equal(t, rec.Types, restored.Types)
	require.NotNil(t, restored.OpeningHours)
	assert.Equal(t, rec.OpeningHours.Periods, restored.OpeningHours.Periods)
	assert.Equal(t, rec.OpeningHours.RawText, restored.OpeningHours.RawText)
}

func TestPayloadRoundTripMinimalRecord(t *testing.T) {
	rec := types.PoiRecord{
		ID:      types.GeneratePoiID("poi://seoul/minimal"),
		Name:    "Minimal",
		RawText: "Minimal",
	}

	restored := recordFromPayload(qdrant.NewValueMap(buildPayload(rec)))

	assert.Equal(t, rec.ID, restored.ID)
	assert.Nil(t, restored.Latitude)
	assert.Nil(t, restored.Rating)
	assert.Nil(t, restored.RatingCount)
	assert.Nil(t, restored.OpeningHours)
	assert.Empty(t, restored.Types)
}

func TestPointID(t *testing.T) {
	t.Run("is deterministic", func(t *testing.T) {
		id := types.GeneratePoiID("https://example.com/a")
		assert.Equal(t, pointID(id).GetUuid(), pointID(id).GetUuid())
	})

	t.Run("differs across poi ids", func(t *testing.T) {
		a := pointID(types.GeneratePoiID("https://example.com/a"))
		b := pointID(types.GeneratePoiID("https://example.com/b"))
		assert.NotEqual(t, a.GetUuid(), b.GetUuid())
	})

	t.Run("handles non-hex identifiers", func(t *testing.T) {
		assert.NotEmpty(t, pointID("not-a-hash").GetUuid())
		assert.Equal(t, pointID("not-a-hash").GetUuid(), pointID("not-a-hash").GetUuid())
	})
}
