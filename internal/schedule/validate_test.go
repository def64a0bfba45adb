package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lockin/internal/model"
)

func block(start, end, activity string) model.ScheduleBlock {
	return model.ScheduleBlock{ID: activity, Start: start, End: end, Activity: activity}
}

func TestValidateAcceptsParsedSchedule(t *testing.T) {
	blocks := Parse("06:00 - 07:00 Morning Workout\n09:00-12:00 Deep Study", nil)
	require.Len(t, blocks, 2)

	valid, violations := Validate(blocks)
	assert.True(t, valid)
	assert.Empty(t, violations)
}

func TestValidateRejectsEmptySchedule(t *testing.T) {
	valid, violations := Validate(nil)
	assert.False(t, valid)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "no blocks")
}

func TestValidateCollectsAllViolations(t *testing.T) {
	blocks := []model.ScheduleBlock{
		block("9:00", "10:00", "unpadded start"), // "9:00" is not canonical
		block("11:00", "11:00", "zero length"),
		block("12:00", "13:00", "   "),
	}

	valid, violations := Validate(blocks)
	assert.False(t, valid)
	// One each: malformed start, start >= end, empty label.
	assert.Len(t, violations, 3)
}

func TestValidateFlagsEveryOverlapPair(t *testing.T) {
	blocks := []model.ScheduleBlock{
		block("08:00", "10:00", "a"),
		block("09:00", "11:00", "b"),
		block("10:30", "12:00", "c"),
	}

	valid, violations := Validate(blocks)
	assert.False(t, valid)
	require.Len(t, violations, 2)
	assert.Contains(t, violations[0], "blocks 1 and 2 overlap")
	assert.Contains(t, violations[1], "blocks 2 and 3 overlap")
}

func TestValidateAllowsTouchingBlocks(t *testing.T) {
	blocks := []model.ScheduleBlock{
		block("08:00", "09:00", "a"),
		block("09:00", "10:00", "b"),
	}

	valid, violations := Validate(blocks)
	assert.True(t, valid)
	assert.Empty(t, violations)
}

func TestValidateOverlapUsesGivenOrder(t *testing.T) {
	// Unsorted input: the adjacent-pair walk sees (10:00-11:00, 08:00-09:00)
	// and flags it, even though the sorted schedule would be fine. Callers
	// are expected to sort before validating.
	blocks := []model.ScheduleBlock{
		block("10:00", "11:00", "late"),
		block("08:00", "09:00", "early"),
	}

	valid, violations := Validate(blocks)
	assert.False(t, valid)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "overlap")
}
