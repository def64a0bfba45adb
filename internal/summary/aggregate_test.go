package summary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"lockin/internal/model"
)

func mkBlocks(n int) []model.ScheduleBlock {
	blocks := make([]model.ScheduleBlock, n)
	for i := range blocks {
		blocks[i] = model.ScheduleBlock{
			ID:       string(rune('a' + i)),
			Start:    "08:00",
			End:      "09:00",
			Activity: "block",
		}
	}
	return blocks
}

func TestAggregateHalfComplete(t *testing.T) {
	blocks := mkBlocks(4)
	logs := map[string]model.VerificationLog{
		"a": {BlockID: "a", Verified: true, FocusScore: 6},
		"b": {BlockID: "b", Verified: true, FocusScore: 8},
	}

	s := Aggregate("2026-08-29", blocks, logs)
	assert.Equal(t, 2, s.CompletedCount)
	assert.Equal(t, 50, s.CompletionRate)
	assert.Equal(t, 7, s.AvgFocusScore)
	assert.False(t, s.AllComplete)
}

func TestAggregateEmptySchedule(t *testing.T) {
	s := Aggregate("2026-08-29", nil, nil)
	assert.Equal(t, 0, s.TotalBlocks)
	assert.Equal(t, 0, s.CompletedCount)
	assert.Equal(t, 0, s.CompletionRate)
	assert.Equal(t, 0, s.AvgFocusScore)
}

func TestAggregateIgnoresUnverifiedLogs(t *testing.T) {
	blocks := mkBlocks(2)
	logs := map[string]model.VerificationLog{
		"a": {BlockID: "a", Verified: false, FocusScore: 9},
	}

	s := Aggregate("2026-08-29", blocks, logs)
	assert.Equal(t, 0, s.CompletedCount)
	assert.Equal(t, 0, s.CompletionRate)
	assert.Equal(t, 0, s.AvgFocusScore)
}

func TestAggregateAllComplete(t *testing.T) {
	blocks := mkBlocks(2)
	logs := map[string]model.VerificationLog{
		"a": {BlockID: "a", Verified: true, FocusScore: 10},
		"b": {BlockID: "b", Verified: true, FocusScore: 7},
	}

	s := Aggregate("2026-08-29", blocks, logs)
	assert.True(t, s.AllComplete)
	assert.Equal(t, 100, s.CompletionRate)
	// (10+7)/2 = 8.5, rounded up.
	assert.Equal(t, 9, s.AvgFocusScore)
}

func TestAggregateRatesAreRounded(t *testing.T) {
	blocks := mkBlocks(3)
	logs := map[string]model.VerificationLog{
		"a": {BlockID: "a", Verified: true, FocusScore: 5},
	}

	s := Aggregate("2026-08-29", blocks, logs)
	// 100/3 = 33.33... rounds to 33.
	assert.Equal(t, 33, s.CompletionRate)
}

func TestForDayFiltersWeekdays(t *testing.T) {
	blocks := []model.ScheduleBlock{
		{ID: "daily", Activity: "daily"},
		{ID: "mwf", Activity: "mwf", Days: []time.Weekday{time.Monday, time.Wednesday, time.Friday}},
	}

	monday := ForDay(blocks, time.Monday)
	assert.Len(t, monday, 2)

	tuesday := ForDay(blocks, time.Tuesday)
	assert.Len(t, tuesday, 1)
	assert.Equal(t, "daily", tuesday[0].ID)
}
