package itinerary

import (
	"fmt"
	"strings"

	"github.com/tripweaver/tripweaver/internal/types"
)

// defaultVisitMinutes estimates how long a traveler stays at a POI when the
// plan carries no explicit schedule entry for it.
var defaultVisitMinutes = map[types.PoiCategory]int{
	types.CategoryRestaurant:    60,
	types.CategoryCafe:          45,
	types.CategoryAttraction:    90,
	types.CategoryAccommodation: 60,
	types.CategoryShopping:      60,
	types.CategoryEntertainment: 90,
	types.CategoryOther:         60,
}

// defaultVisitCost estimates a per-POI spend for budget validation.
var defaultVisitCost = map[types.PoiCategory]int{
	types.CategoryRestaurant:    30000,
	types.CategoryCafe:          10000,
	types.CategoryAttraction:    20000,
	types.CategoryAccommodation: 100000,
	types.CategoryShopping:      30000,
	types.CategoryEntertainment: 30000,
	types.CategoryOther:         20000,
}

func estimatedVisitTime(poi types.PoiRecord) int {
	if minutes, ok := defaultVisitMinutes[poi.Category]; ok {
		return minutes
	}
	return defaultVisitMinutes[types.CategoryOther]
}

func estimatedVisitCost(poi types.PoiRecord) int {
	if cost, ok := defaultVisitCost[poi.Category]; ok {
		return cost
	}
	return defaultVisitCost[types.CategoryOther]
}

// ConstraintValidator checks an itinerary attempt against the static
// time, budget and date-range constraints.
type ConstraintValidator struct {
	MaxDailyMinutes int
	VisitMinutes    map[types.PoiCategory]int
	VisitCost       map[types.PoiCategory]int
}

func NewConstraintValidator(maxDailyMinutes int) *ConstraintValidator {
	return &ConstraintValidator{
		MaxDailyMinutes: maxDailyMinutes,
		VisitMinutes:    defaultVisitMinutes,
		VisitCost:       defaultVisitCost,
	}
}

// Validate returns a textual feedback string describing every violated
// constraint, or "" when the attempt passes.
func (v *ConstraintValidator) Validate(itineraries []types.DayItinerary, totalBudget int, startDate, endDate string) string {
	var feedbacks []string

	if budget := v.validateBudget(itineraries, totalBudget); budget != "" {
		feedbacks = append(feedbacks, budget)
	}
	if daily := v.validateDailyTime(itineraries); daily != "" {
		feedbacks = append(feedbacks, daily)
	}
	if dates := v.validateDateRange(itineraries, startDate, endDate); dates != "" {
		feedbacks = append(feedbacks, dates)
	}

	return strings.Join(feedbacks, "\n")
}

func (v *ConstraintValidator) estimatedCost(itineraries []types.DayItinerary) int {
	total := 0
	for _, day := range itineraries {
		for _, poi := range day.Pois {
			if cost, ok := v.VisitCost[poi.Category]; ok {
				total += cost
			} else {
				total += v.VisitCost[types.CategoryOther]
			}
		}
	}
	return total
}

func (v *ConstraintValidator) validateBudget(itineraries []types.DayItinerary, totalBudget int) string {
	estimated := v.estimatedCost(itineraries)
	if estimated <= totalBudget {
		return ""
	}
	return fmt.Sprintf(
		"[budget exceeded] estimated cost %d exceeds the budget %d; drop some POIs or swap in cheaper places.",
		estimated, totalBudget)
}

func (v *ConstraintValidator) validateDailyTime(itineraries []types.DayItinerary) string {
	var overDays []string
	for _, day := range itineraries {
		if day.TotalDurationMinutes > v.MaxDailyMinutes {
			overDays = append(overDays, fmt.Sprintf("%s: %d minutes (at most %d allowed)",
				day.Date, day.TotalDurationMinutes, v.MaxDailyMinutes))
		}
	}
	if len(overDays) == 0 {
		return ""
	}
	return fmt.Sprintf(
		"[daily time exceeded] these days run too long: %s. Move some POIs to another day or remove them.",
		strings.Join(overDays, ", "))
}

func (v *ConstraintValidator) validateDateRange(itineraries []types.DayItinerary, startDate, endDate string) string {
	if len(itineraries) == 0 {
		return "[no itinerary] no daily plans were generated."
	}

	var problems []string
	for _, day := range itineraries {
		if day.Date < startDate {
			problems = append(problems, fmt.Sprintf("day %s is before the trip start %s", day.Date, startDate))
		}
		if day.Date > endDate {
			problems = append(problems, fmt.Sprintf("day %s is after the trip end %s", day.Date, endDate))
		}
	}
	if len(problems) == 0 {
		return ""
	}
	return "[date range] " + strings.Join(problems, "; ")
}

// Penalty quantifies how badly the attempt violates the constraints: the sum
// of per-day minute overages plus the budget overage. Zero means fully
// compliant.
func (v *ConstraintValidator) Penalty(itineraries []types.DayItinerary, totalBudget int) int {
	penalty := 0
	for _, day := range itineraries {
		if over := day.TotalDurationMinutes - v.MaxDailyMinutes; over > 0 {
			penalty += over
		}
	}
	if over := v.estimatedCost(itineraries) - totalBudget; over > 0 {
		penalty += over
	}
	return penalty
}
