package places

import (
	"fmt"
	"strings"

	"github.com/tripweaver/tripweaver/internal/types"
)

// parseOpeningHours converts the API's regularOpeningHours block into the
// weekly model: one entry per ISO weekday, missing days marked closed. The
// API counts days from Sunday=0; the model counts from Monday=1.
func parseOpeningHours(hours *openingPeriod) *types.OpeningHours {
	if hours == nil {
		return nil
	}

	byDay := make(map[types.DayOfWeek][]types.TimeSlot)
	for _, period := range hours.Periods {
		if period.Open == nil || period.Open.Day == nil {
			continue
		}

		isoDay := types.DayOfWeek(*period.Open.Day)
		if *period.Open.Day == 0 {
			isoDay = types.Sunday
		}

		closeHour, closeMinute := 23, 59
		if period.Close != nil {
			closeHour, closeMinute = period.Close.Hour, period.Close.Minute
		}
		byDay[isoDay] = append(byDay[isoDay], types.TimeSlot{
			OpenTime:  fmt.Sprintf("%02d:%02d", period.Open.Hour, period.Open.Minute),
			CloseTime: fmt.Sprintf("%02d:%02d", closeHour, closeMinute),
		})
	}

	periods := make([]types.DailyOpeningHours, 0, 7)
	for day := types.Monday; day <= types.Sunday; day++ {
		slots, open := byDay[day]
		periods = append(periods, types.DailyOpeningHours{
			Day:      day,
			Slots:    slots,
			IsClosed: !open,
		})
	}

	return &types.OpeningHours{
		Periods: periods,
		RawText: hours.WeekdayDescriptions,
	}
}

// buildRawText composes the embedding source string for a validated record.
func buildRawText(summary types.PoiSummary, rec types.PoiRecord) string {
	parts := []string{rec.Name}
	if summary.Description != "" {
		parts = append(parts, summary.Description)
	}
	if rec.Address != "" {
		parts = append(parts, "Located at: "+rec.Address)
	}
	if len(summary.Highlights) > 0 {
		parts = append(parts, "Highlights: "+strings.Join(summary.Highlights, ", "))
	}
	return strings.Join(parts, ". ")
}
