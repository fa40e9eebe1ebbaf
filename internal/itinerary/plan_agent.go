package itinerary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tripweaver/tripweaver/internal/llm"
	"github.com/tripweaver/tripweaver/internal/types"
)

const planSystemPrompt = `You are an expert travel itinerary planner.
Distribute the given POIs across the travel period into the best possible
daily schedule.

Rules:
1. Put 4-5 POIs on each day, neither overloaded nor empty.
2. Group POIs that are close to each other on the same day.
3. Schedule restaurants and cafes at sensible meal times (lunch 11:30-13:00, dinner 17:30-19:00).
4. Include every POI exactly once.
5. If feedback is given, it must be addressed.
6. Assign each POI a start time (HH:MM, 24h) and a stay duration in minutes.
7. Keep each day between 09:00 and 21:00.
8. Leave roughly 30 minutes between POIs for travel.
9. Choose stay durations that fit the venue (attraction 60-120, cafe 30-60, restaurant 60-90).`

var planSchema = llm.Object(map[string]*llm.Schema{
	"day_plans": llm.Array(llm.Object(map[string]*llm.Schema{
		"date": llm.String(),
		"scheduled_pois": llm.Array(llm.Object(map[string]*llm.Schema{
			"poi_id":           llm.String(),
			"start_time":       llm.String(),
			"duration_minutes": llm.Integer(),
		}, "poi_id", "start_time", "duration_minutes")),
	}, "date", "scheduled_pois")),
	"reasoning": llm.String(),
}, "day_plans", "reasoning")

type planResponse struct {
	DayPlans []struct {
		Date          string `json:"date"`
		ScheduledPois []struct {
			PoiID           string `json:"poi_id"`
			StartTime       string `json:"start_time"`
			DurationMinutes int    `json:"duration_minutes"`
		} `json:"scheduled_pois"`
	} `json:"day_plans"`
	Reasoning string `json:"reasoning"`
}

// PlanAgent drives the LLM to assign POIs to dates. It produces day
// itineraries without transfers; the legs task fills those in afterwards.
type PlanAgent struct {
	llm    llm.Client
	logger *slog.Logger
}

func NewPlanAgent(llmClient llm.Client, logger *slog.Logger) *PlanAgent {
	return &PlanAgent{llm: llmClient, logger: logger}
}

// Generate produces a fresh plan; a non-empty feedback string turns the call
// into a refinement of the previous attempt.
func (a *PlanAgent) Generate(ctx context.Context, state *types.ItinState, feedback string) ([]types.DayItinerary, error) {
	prompt := a.buildPrompt(state, feedback)

	var parsed planResponse
	if err := a.llm.CompleteStructured(ctx, planSystemPrompt+"\n\n"+prompt, planSchema, &parsed); err != nil {
		return nil, fmt.Errorf("plan generation: %w", err)
	}

	a.logger.InfoContext(ctx, "plan generated",
		slog.Int("days", len(parsed.DayPlans)),
		slog.Int("reasoning_length", len(parsed.Reasoning)))
	return a.toItineraries(ctx, parsed, state.Pois), nil
}

func (a *PlanAgent) buildPrompt(state *types.ItinState, feedback string) string {
	var poiList strings.Builder
	for _, poi := range state.Pois {
		desc := poi.Description
		if len(desc) > 50 {
			desc = desc[:50]
		}
		if desc == "" {
			desc = "no description"
		}
		address := poi.Address
		if address == "" {
			address = "no address"
		}
		fmt.Fprintf(&poiList, "- ID: %s, name: %s, category: %s, description: %s, address: %s\n",
			poi.ID, poi.Name, poi.Category, desc, address)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<travel_info>
    <destination>%s</destination>
    <start_date>%s</start_date>
    <end_date>%s</end_date>
</travel_info>

<persona>
%s
</persona>

<poi_list>
%s</poi_list>
`, state.Destination, state.StartDate, state.EndDate, state.Persona, poiList.String())

	if feedback != "" {
		fmt.Fprintf(&b, `
<feedback>
Revise the itinerary according to this feedback:
%s
</feedback>
`, feedback)
	}

	b.WriteString(`
Build the best itinerary from the information above. Order the POIs within
each day and assign every POI a start time and stay duration.`)
	return b.String()
}

func (a *PlanAgent) toItineraries(ctx context.Context, parsed planResponse, pois []types.PoiRecord) []types.DayItinerary {
	poiByID := make(map[string]types.PoiRecord, len(pois))
	for _, poi := range pois {
		poiByID[poi.ID] = poi
	}

	var unmapped []string
	itineraries := make([]types.DayItinerary, 0, len(parsed.DayPlans))
	for _, plan := range parsed.DayPlans {
		day := types.DayItinerary{Date: plan.Date}
		for _, sp := range plan.ScheduledPois {
			poi, ok := poiByID[sp.PoiID]
			if !ok {
				unmapped = append(unmapped, sp.PoiID)
				continue
			}
			day.Pois = append(day.Pois, poi)
			day.Schedule = append(day.Schedule, types.ScheduledEntry{
				PoiID:           sp.PoiID,
				StartTime:       sp.StartTime,
				DurationMinutes: sp.DurationMinutes,
			})
		}
		itineraries = append(itineraries, day)
	}

	if len(unmapped) > 0 {
		a.logger.WarnContext(ctx, "plan referenced unknown poi ids", slog.Any("poi_ids", unmapped))
	}
	return itineraries
}
