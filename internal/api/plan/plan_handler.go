package plan

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tripweaver/tripweaver/app/observability/metrics"
	"github.com/tripweaver/tripweaver/internal/api"
	"github.com/tripweaver/tripweaver/internal/itinerary"
	"github.com/tripweaver/tripweaver/internal/types"
)

// PlanRequest is the HTTP input for a full plan run.
type PlanRequest struct {
	Persona     string `json:"persona"`
	Destination string `json:"destination"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	TotalBudget int    `json:"total_budget"`
}

// PlanResponse is the HTTP output.
type PlanResponse struct {
	RequestID    string               `json:"request_id"`
	Pois         []types.PoiRecord    `json:"pois"`
	Itineraries  []types.DayItinerary `json:"itineraries"`
	UsedFallback bool                 `json:"used_fallback"`
	Iterations   int                  `json:"iterations"`
}

// Handler exposes the two orchestrators over HTTP.
type Handler struct {
	discoverer itinerary.Discoverer
	planner    *itinerary.Planner
	logger     *slog.Logger
}

func NewHandler(discoverer itinerary.Discoverer, planner *itinerary.Planner, logger *slog.Logger) *Handler {
	return &Handler{discoverer: discoverer, planner: planner, logger: logger}
}

// GeneratePlan runs discovery followed by planning for one request.
func (h *Handler) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PlanHandler").Start(r.Context(), "GeneratePlan")
	defer span.End()

	var req PlanRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Destination == "" || req.StartDate == "" || req.EndDate == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "destination, start_date and end_date are required")
		return
	}

	requestID := uuid.New().String()
	span.SetAttributes(
		attribute.String("plan.request_id", requestID),
		attribute.String("plan.destination", req.Destination),
	)
	start := time.Now()

	discovery, err := h.discoverer.Run(ctx, req.Persona, req.Destination, req.StartDate, req.EndDate)
	if err != nil {
		h.logger.ErrorContext(ctx, "discovery failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "discovery failed")
		api.ErrorResponse(w, r, http.StatusServiceUnavailable, "poi discovery unavailable")
		return
	}
	metrics.Get().DiscoveryDurationSeconds.Record(ctx, time.Since(start).Seconds())

	result, err := h.planner.Run(ctx, itinerary.Request{
		Pois:        discovery.FinalPoiData,
		Destination: req.Destination,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		TotalBudget: req.TotalBudget,
		Persona:     req.Persona,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "planning failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "planning failed")
		api.ErrorResponse(w, r, http.StatusServiceUnavailable, "itinerary planning unavailable")
		return
	}

	m := metrics.Get()
	m.PlanRequestsTotal.Add(ctx, 1)
	m.PlanDurationSeconds.Record(ctx, time.Since(start).Seconds())
	m.PlanIterationsTotal.Add(ctx, int64(result.Iterations))
	if result.UsedFallback {
		m.PlanFallbacksTotal.Add(ctx, 1)
	}

	span.SetStatus(codes.Ok, "plan generated")
	api.WriteJSONResponse(w, r, http.StatusOK, PlanResponse{
		RequestID:    requestID,
		Pois:         discovery.FinalPoiData,
		Itineraries:  result.Itineraries,
		UsedFallback: result.UsedFallback,
		Iterations:   result.Iterations,
	})
}
