package itinerary

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tripweaver/tripweaver/config"
	"github.com/tripweaver/tripweaver/internal/types"
)

// PlanGenerator produces day itineraries from the current state, optionally
// steered by feedback from a previous attempt.
type PlanGenerator interface {
	Generate(ctx context.Context, state *types.ItinState, feedback string) ([]types.DayItinerary, error)
}

// LegCalculator fills in the travel legs between consecutive POIs.
type LegCalculator interface {
	CalcSequence(ctx context.Context, pois []types.PoiRecord, mode types.TravelMode) []types.Transfer
}

// Discoverer runs POI discovery to top up an insufficient POI pool.
type Discoverer interface {
	Run(ctx context.Context, persona, destination, startDate, endDate string) (*types.PoiState, error)
}

// Request is the planner's input.
type Request struct {
	Pois        []types.PoiRecord
	Destination string
	StartDate   string
	EndDate     string
	TotalBudget int
	Persona     string
}

// Result carries the final itineraries. UsedFallback marks a best-effort
// return after the iteration budget ran out with constraints still violated.
type Result struct {
	Itineraries  []types.DayItinerary
	UsedFallback bool
	Iterations   int
	Penalty      int
}

// Planner is the itinerary orchestrator: a bounded refinement loop of
// plan -> legs -> validate -> balance with FIFO task dispatch, feedback
// propagation and best-attempt fallback.
type Planner struct {
	planAgent  PlanGenerator
	todo       TodoAgent
	legs       LegCalculator
	validator  *ConstraintValidator
	balancer   *BalanceAgent
	discoverer Discoverer
	cfg        config.PlannerConfig
	logger     *slog.Logger
}

func NewPlanner(planAgent PlanGenerator, legs LegCalculator, discoverer Discoverer, cfg config.PlannerConfig, logger *slog.Logger) *Planner {
	return &Planner{
		planAgent:  planAgent,
		legs:       legs,
		validator:  NewConstraintValidator(cfg.MaxDailyMinutes),
		balancer:   NewBalanceAgent(cfg.OptimalPoiCount, cfg.MaxPoiCount, cfg.MinPoiCount),
		discoverer: discoverer,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run executes the refinement loop. It fails only when the LLM stays
// unavailable for planning; every other trouble degrades into feedback and,
// in the worst case, the best attempt seen so far.
func (p *Planner) Run(ctx context.Context, req Request) (*Result, error) {
	ctx, span := otel.Tracer("ItineraryPlanner").Start(ctx, "Run", trace.WithAttributes(
		attribute.String("plan.destination", req.Destination),
		attribute.Int("plan.poi_count", len(req.Pois)),
	))
	defer span.End()

	state := &types.ItinState{
		Pois:        req.Pois,
		Destination: req.Destination,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		TotalBudget: req.TotalBudget,
		Persona:     req.Persona,
	}

	p.ensureSufficientPois(ctx, state)
	if len(state.Pois) == 0 {
		p.logger.WarnContext(ctx, "no POIs available, returning empty plan")
		span.SetStatus(codes.Ok, "no pois")
		return &Result{}, nil
	}

	for state.IterationCount < p.cfg.MaxIterations {
		feedback := joinFeedback(state.ValidationFeedback, state.ScheduleFeedback)
		state.IterationCount++

		itineraries, err := p.planAgent.Generate(ctx, state, feedback)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "planning unavailable")
			return nil, &types.CoreUnavailableError{Stage: "planning", Err: err}
		}

		newIDs := plannedPoiIDs(itineraries)
		state.IsPoiChanged = p.todo.PoiChanged(newIDs, state.PreviousPoiIDs)
		state.PreviousPoiIDs = newIDs
		state.Itineraries = itineraries
		state.ValidationFeedback = ""
		state.ScheduleFeedback = ""

		regenerate := p.drainTaskQueue(ctx, state)

		penalty := p.validator.Penalty(state.Itineraries, state.TotalBudget)
		if len(state.Itineraries) > 0 && (!state.HasBest || penalty < state.BestPenalty) {
			state.BestItineraries = append([]types.DayItinerary(nil), state.Itineraries...)
			state.BestPenalty = penalty
			state.HasBest = true
		}

		p.logger.InfoContext(ctx, "iteration finished",
			slog.Int("iteration", state.IterationCount),
			slog.Int("penalty", penalty),
			slog.Bool("needs_revision", regenerate))

		if !regenerate {
			span.SetStatus(codes.Ok, "converged")
			return &Result{
				Itineraries: state.Itineraries,
				Iterations:  state.IterationCount,
				Penalty:     penalty,
			}, nil
		}
	}

	// Iteration budget exhausted: hand back the best attempt.
	p.logger.WarnContext(ctx, "iteration budget exhausted, returning best attempt",
		slog.Int("iterations", state.IterationCount),
		slog.Int("best_penalty", state.BestPenalty))
	span.SetStatus(codes.Ok, "fallback")
	return &Result{
		Itineraries:  state.BestItineraries,
		UsedFallback: true,
		Iterations:   state.IterationCount,
		Penalty:      state.BestPenalty,
	}, nil
}

// drainTaskQueue runs the FIFO task queue until it is empty or a task
// demands regeneration. Returns true when another plan iteration is needed.
func (p *Planner) drainTaskQueue(ctx context.Context, state *types.ItinState) bool {
	state.TaskQueue = p.todo.PlanTasks(state)

	for len(state.TaskQueue) > 0 {
		task := state.TaskQueue[0]
		state.TaskQueue = state.TaskQueue[1:]
		state.CurrentTask = task

		switch task {
		case types.TaskPlan:
			return true

		case types.TaskLegs:
			p.computeLegs(ctx, state)

		case types.TaskValidate:
			state.ValidationFeedback = p.validator.Validate(
				state.Itineraries, state.TotalBudget, state.StartDate, state.EndDate)

		case types.TaskBalance:
			state.ScheduleFeedback = p.balancer.Analyze(state.Itineraries)
		}
	}
	state.CurrentTask = ""

	return state.ValidationFeedback != "" || state.ScheduleFeedback != ""
}

// computeLegs fills transfers and day totals: travel time between consecutive
// POIs plus the visit time of each POI, preferring the planned stay duration
// over the category estimate.
func (p *Planner) computeLegs(ctx context.Context, state *types.ItinState) {
	for i := range state.Itineraries {
		day := &state.Itineraries[i]
		if len(day.Pois) == 0 {
			day.Transfers = nil
			day.TotalDurationMinutes = 0
			continue
		}

		day.Transfers = p.legs.CalcSequence(ctx, day.Pois, types.ModeDriving)

		total := 0
		for _, transfer := range day.Transfers {
			total += transfer.DurationMinutes
		}
		scheduled := make(map[string]int, len(day.Schedule))
		for _, entry := range day.Schedule {
			scheduled[entry.PoiID] = entry.DurationMinutes
		}
		for _, poi := range day.Pois {
			if minutes, ok := scheduled[poi.ID]; ok && minutes > 0 {
				total += minutes
			} else if minutes, ok := p.validator.VisitMinutes[poi.Category]; ok {
				total += minutes
			} else {
				total += estimatedVisitTime(poi)
			}
		}
		day.TotalDurationMinutes = total
	}
}

// ensureSufficientPois tops up the POI pool through discovery when it is
// below the sufficiency threshold, up to the enrichment attempt budget.
func (p *Planner) ensureSufficientPois(ctx context.Context, state *types.ItinState) {
	state.IsPoiSufficient = len(state.Pois) >= p.cfg.MinPoiTotal

	for !state.IsPoiSufficient &&
		state.PoiEnrichAttempts < p.cfg.MaxEnrichAttempts &&
		p.discoverer != nil {

		state.PoiEnrichAttempts++
		p.logger.InfoContext(ctx, "enriching POI pool",
			slog.Int("current", len(state.Pois)),
			slog.Int("attempt", state.PoiEnrichAttempts))

		discovered, err := p.discoverer.Run(ctx, state.Persona, state.Destination, state.StartDate, state.EndDate)
		if err != nil {
			p.logger.WarnContext(ctx, "enrichment run failed", slog.Any("error", err))
			continue
		}

		existing := make(map[string]struct{}, len(state.Pois))
		for _, poi := range state.Pois {
			existing[poi.ID] = struct{}{}
		}
		needed := p.cfg.MinPoiTotal - len(state.Pois)
		for _, poi := range discovered.FinalPoiData {
			if needed <= 0 {
				break
			}
			if _, dup := existing[poi.ID]; dup {
				continue
			}
			existing[poi.ID] = struct{}{}
			state.Pois = append(state.Pois, poi)
			needed--
		}

		state.IsPoiSufficient = len(state.Pois) >= p.cfg.MinPoiTotal
	}
}

func joinFeedback(validation, schedule string) string {
	switch {
	case validation != "" && schedule != "":
		return validation + "\n" + schedule
	case validation != "":
		return validation
	default:
		return schedule
	}
}
