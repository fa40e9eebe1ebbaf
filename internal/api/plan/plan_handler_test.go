package plan

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripweaver/tripweaver/app/observability/metrics"
	"github.com/tripweaver/tripweaver/config"
	"github.com/tripweaver/tripweaver/internal/itinerary"
	"github.com/tripweaver/tripweaver/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubDiscoverer struct {
	pois []types.PoiRecord
}

func (s *stubDiscoverer) Run(ctx context.Context, persona, destination, startDate, endDate string) (*types.PoiState, error) {
	return &types.PoiState{FinalPoiData: s.pois}, nil
}

type stubPlanAgent struct {
	days []types.DayItinerary
}

func (s *stubPlanAgent) Generate(ctx context.Context, state *types.ItinState, feedback string) ([]types.DayItinerary, error) {
	return append([]types.DayItinerary(nil), s.days...), nil
}

type stubLegs struct{}

func (stubLegs) CalcSequence(ctx context.Context, pois []types.PoiRecord, mode types.TravelMode) []types.Transfer {
	if len(pois) <= 1 {
		return nil
	}
	out := make([]types.Transfer, 0, len(pois)-1)
	for i := 0; i < len(pois)-1; i++ {
		out = append(out, types.Transfer{
			FromPoiID: pois[i].ID, ToPoiID: pois[i+1].ID,
			Mode: mode, DurationMinutes: 15,
		})
	}
	return out
}

func TestGeneratePlan(t *testing.T) {
	metrics.InitAppMetrics()

	pois := []types.PoiRecord{
		{ID: "a", Name: "Snail House", Category: types.CategoryRestaurant},
		{ID: "b", Name: "Euljiro Bar", Category: types.CategoryEntertainment},
	}
	planner := itinerary.NewPlanner(
		&stubPlanAgent{days: []types.DayItinerary{{Date: "2025-07-01", Pois: pois}}},
		stubLegs{},
		nil,
		config.PlannerConfig{
			MaxIterations:   5,
			MaxDailyMinutes: 720,
			OptimalPoiCount: 4,
			MaxPoiCount:     6,
			MinPoiCount:     1,
		},
		testLogger(),
	)
	handler := NewHandler(&stubDiscoverer{pois: pois}, planner, testLogger())

	t.Run("returns the generated plan", func(t *testing.T) {
		body := `{"persona":"food tour","destination":"Seoul","start_date":"2025-07-01","end_date":"2025-07-01","total_budget":500000}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/itineraries", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.GeneratePlan(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp PlanResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.RequestID)
		assert.Len(t, resp.Pois, 2)
		require.Len(t, resp.Itineraries, 1)
		assert.Len(t, resp.Itineraries[0].Transfers, 1)
		assert.False(t, resp.UsedFallback)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/itineraries", strings.NewReader(`{"persona":"x"}`))
		rec := httptest.NewRecorder()

		handler.GeneratePlan(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/itineraries", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()

		handler.GeneratePlan(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
