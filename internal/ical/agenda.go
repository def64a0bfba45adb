package ical

import (
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"lockin/internal/model"
	"lockin/internal/schedule"
)

// Occurrence is one dated, concrete instance of a schedule block.
type Occurrence struct {
	BlockID  string         `json:"block_id"`
	Activity string         `json:"activity"`
	Category model.Category `json:"category"`
	Start    time.Time      `json:"start"`
	End      time.Time      `json:"end"`
}

var rruleWeekday = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// Expand materializes each block's recurrence into concrete occurrences
// within [from, to), sorted by start. Blocks with malformed times are an
// error; the schedule validator should have caught them before this runs.
func Expand(blocks []model.ScheduleBlock, from, to time.Time, loc *time.Location) ([]Occurrence, error) {
	if loc == nil {
		loc = time.Local
	}
	if to.Before(from) {
		return nil, fmt.Errorf("ical: expand range end is before start")
	}

	out := make([]Occurrence, 0)
	for _, b := range blocks {
		startMin, ok := schedule.ClockMinutes(b.Start)
		if !ok {
			return nil, fmt.Errorf("ical: block %q has malformed start %q", b.ID, b.Start)
		}
		endMin, ok := schedule.ClockMinutes(b.End)
		if !ok {
			return nil, fmt.Errorf("ical: block %q has malformed end %q", b.ID, b.End)
		}

		opt := rrule.ROption{
			Freq:    rrule.DAILY,
			Dtstart: atMinutes(from.In(loc), startMin, loc),
		}
		if len(b.Days) > 0 {
			opt.Freq = rrule.WEEKLY
			byDays := make([]rrule.Weekday, 0, len(b.Days))
			for _, d := range b.Days {
				byDays = append(byDays, rruleWeekday[int(d)%7])
			}
			opt.Byweekday = byDays
		}

		r, err := rrule.NewRRule(opt)
		if err != nil {
			return nil, fmt.Errorf("ical: build rule for block %q: %w", b.ID, err)
		}

		duration := time.Duration(endMin-startMin) * time.Minute
		for _, start := range r.Between(from, to, true) {
			if !start.Before(to) {
				continue
			}
			out = append(out, Occurrence{
				BlockID:  b.ID,
				Activity: b.Activity,
				Category: b.Category,
				Start:    start,
				End:      start.Add(duration),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].BlockID < out[j].BlockID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}
