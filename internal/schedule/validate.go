package schedule

import (
	"fmt"
	"strings"

	"lockin/internal/model"
)

// Validate gates a candidate schedule before persistence. It returns the
// full list of violations rather than stopping at the first, so callers
// can surface everything at once.
//
// Overlap is checked between adjacent blocks in the order given. The
// parser always sorts its output, so on the normal path this is sorted
// order; callers constructing schedules by hand must sort first.
func Validate(blocks []model.ScheduleBlock) (bool, []string) {
	violations := make([]string, 0)

	if len(blocks) == 0 {
		violations = append(violations, "schedule has no blocks")
	}

	for i, b := range blocks {
		startMin, startOK := ClockMinutes(b.Start)
		endMin, endOK := ClockMinutes(b.End)

		if !startOK {
			violations = append(violations, fmt.Sprintf("block %d: start time %q is not a valid HH:MM", i+1, b.Start))
		}
		if !endOK {
			violations = append(violations, fmt.Sprintf("block %d: end time %q is not a valid HH:MM", i+1, b.End))
		}
		if startOK && endOK && startMin >= endMin {
			violations = append(violations, fmt.Sprintf("block %d: start %s must be before end %s", i+1, b.Start, b.End))
		}
		if strings.TrimSpace(b.Activity) == "" {
			violations = append(violations, fmt.Sprintf("block %d: activity label is empty", i+1))
		}
	}

	for i := 0; i+1 < len(blocks); i++ {
		endMin, endOK := ClockMinutes(blocks[i].End)
		nextStartMin, nextOK := ClockMinutes(blocks[i+1].Start)
		if !endOK || !nextOK {
			continue
		}
		if endMin > nextStartMin {
			violations = append(violations, fmt.Sprintf(
				"blocks %d and %d overlap: %q ends at %s after %q starts at %s",
				i+1, i+2, blocks[i].Activity, blocks[i].End, blocks[i+1].Activity, blocks[i+1].Start))
		}
	}

	return len(violations) == 0, violations
}
