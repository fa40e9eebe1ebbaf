package itinerary

import (
	"fmt"
	"strings"

	"github.com/tripweaver/tripweaver/internal/types"
)

// BalanceAgent inspects per-day POI counts and prescribes redistribution
// when days are overloaded while others sit under the optimum.
type BalanceAgent struct {
	OptimalPoiCount int
	MaxPoiCount     int
	MinPoiCount     int
}

func NewBalanceAgent(optimal, maximum, minimum int) *BalanceAgent {
	return &BalanceAgent{
		OptimalPoiCount: optimal,
		MaxPoiCount:     maximum,
		MinPoiCount:     minimum,
	}
}

// Analyze returns a feedback string prescribing movement or removal, or ""
// when the plan is balanced.
func (b *BalanceAgent) Analyze(itineraries []types.DayItinerary) string {
	if len(itineraries) == 0 {
		return ""
	}

	var feedbacks []string
	if overloaded := b.overloadedDays(itineraries); len(overloaded) > 0 {
		feedbacks = append(feedbacks, b.suggestRedistribution(overloaded, itineraries))
	}
	if sparse := b.sparseDays(itineraries); len(sparse) > 0 && b.hasDayAboveOptimal(itineraries) {
		feedbacks = append(feedbacks, b.suggestFilling(sparse))
	}
	return strings.Join(feedbacks, "\n")
}

func (b *BalanceAgent) overloadedDays(itineraries []types.DayItinerary) []types.DayItinerary {
	var out []types.DayItinerary
	for _, day := range itineraries {
		if len(day.Pois) > b.MaxPoiCount {
			out = append(out, day)
		}
	}
	return out
}

func (b *BalanceAgent) sparseDays(itineraries []types.DayItinerary) []types.DayItinerary {
	var out []types.DayItinerary
	for _, day := range itineraries {
		if len(day.Pois) < b.MinPoiCount {
			out = append(out, day)
		}
	}
	return out
}

func (b *BalanceAgent) hasDayAboveOptimal(itineraries []types.DayItinerary) bool {
	for _, day := range itineraries {
		if len(day.Pois) > b.OptimalPoiCount {
			return true
		}
	}
	return false
}

func (b *BalanceAgent) suggestRedistribution(overloaded, all []types.DayItinerary) string {
	var suggestions []string
	for _, day := range overloaded {
		excess := len(day.Pois) - b.OptimalPoiCount
		names := make([]string, 0, excess)
		for _, poi := range day.Pois[len(day.Pois)-excess:] {
			names = append(names, poi.Name)
		}
		if len(names) > 3 {
			names = names[:3]
		}

		var available []string
		for _, other := range all {
			if other.Date != day.Date && len(other.Pois) < b.OptimalPoiCount {
				available = append(available, other.Date)
			}
		}

		if len(available) > 0 {
			suggestions = append(suggestions, fmt.Sprintf(
				"%s has %d POIs, too many; move %q to %s.",
				day.Date, len(day.Pois), strings.Join(names, ", "), available[0]))
		} else {
			suggestions = append(suggestions, fmt.Sprintf(
				"%s has %d POIs, too many; remove %q or move them to another day.",
				day.Date, len(day.Pois), strings.Join(names, ", ")))
		}
	}
	return "[overloaded days] " + strings.Join(suggestions, " ")
}

func (b *BalanceAgent) suggestFilling(sparse []types.DayItinerary) string {
	dates := make([]string, 0, len(sparse))
	for _, day := range sparse {
		dates = append(dates, day.Date)
	}
	return fmt.Sprintf(
		"[sparse days] %s have too few POIs; move POIs from busier days onto them.",
		strings.Join(dates, ", "))
}
