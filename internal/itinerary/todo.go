package itinerary

import (
	"sort"

	"github.com/tripweaver/tripweaver/internal/types"
)

// TodoAgent decides, rule-based and without any LLM call, which tasks the
// planner must run next given the current state. The queue is strictly FIFO.
type TodoAgent struct{}

// PlanTasks builds the task queue for the current state:
//   - no itineraries yet: plan from scratch
//   - pending feedback: replan (the plan task demands regeneration)
//   - POIs changed or transfers missing: recompute legs, then re-check
//   - otherwise: re-check constraints and balance only
func (TodoAgent) PlanTasks(state *types.ItinState) []types.TaskName {
	if len(state.Itineraries) == 0 {
		return []types.TaskName{types.TaskPlan}
	}
	if state.ValidationFeedback != "" || state.ScheduleFeedback != "" {
		return []types.TaskName{types.TaskPlan}
	}
	if state.IsPoiChanged || missingTransfers(state.Itineraries) {
		return []types.TaskName{types.TaskLegs, types.TaskValidate, types.TaskBalance}
	}
	return []types.TaskName{types.TaskValidate, types.TaskBalance}
}

func missingTransfers(itineraries []types.DayItinerary) bool {
	for _, day := range itineraries {
		if len(day.Pois) > 1 && len(day.Transfers) == 0 {
			return true
		}
	}
	return false
}

// PoiChanged reports whether the planned POI set differs from the previous
// iteration's set.
func (TodoAgent) PoiChanged(current, previous []string) bool {
	if len(current) != len(previous) {
		return true
	}
	a := append([]string(nil), current...)
	b := append([]string(nil), previous...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return true
		}
	}
	return false
}

// plannedPoiIDs collects every POI ID across the day itineraries.
func plannedPoiIDs(itineraries []types.DayItinerary) []string {
	var ids []string
	for _, day := range itineraries {
		for _, poi := range day.Pois {
			ids = append(ids, poi.ID)
		}
	}
	return ids
}
