package summary

import (
	"math"
	"time"

	"lockin/internal/model"
)

// Aggregate folds a day's verification logs against the schedule into
// completion statistics. It is pure: no I/O, no memory of prior days.
// Whether to act on AllComplete (e.g. send the daily summary email
// exactly once) is the caller's responsibility.
//
// AllComplete compares counts, not block identities: a schedule edited
// mid-day can therefore read as complete with an unverified block in it.
func Aggregate(date string, blocks []model.ScheduleBlock, logs map[string]model.VerificationLog) model.DaySummary {
	total := len(blocks)

	completed := 0
	focusSum := 0
	for _, b := range blocks {
		lg, ok := logs[b.ID]
		if !ok || !lg.Verified {
			continue
		}
		completed++
		focusSum += lg.FocusScore
	}

	rate := 0
	if total > 0 {
		rate = int(math.Round(100 * float64(completed) / float64(total)))
	}
	avgFocus := 0
	if completed > 0 {
		avgFocus = int(math.Round(float64(focusSum) / float64(completed)))
	}

	return model.DaySummary{
		Date:           date,
		TotalBlocks:    total,
		CompletedCount: completed,
		CompletionRate: rate,
		AvgFocusScore:  avgFocus,
		AllComplete:    completed >= total,
	}
}

// ForDay filters a schedule down to the blocks active on the given
// weekday, preserving order.
func ForDay(blocks []model.ScheduleBlock, day time.Weekday) []model.ScheduleBlock {
	out := make([]model.ScheduleBlock, 0, len(blocks))
	for _, b := range blocks {
		if b.ActiveOn(day) {
			out = append(out, b)
		}
	}
	return out
}
