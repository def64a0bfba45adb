package ical

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"lockin/internal/model"
	"lockin/internal/schedule"
)

// rruleDay maps time.Weekday onto iCalendar BYDAY tokens.
var rruleDay = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// Export serializes a schedule as an iCalendar document so users can
// subscribe to their daily plan from a regular calendar app. Each block
// becomes one recurring VEVENT: FREQ=DAILY, or FREQ=WEEKLY with BYDAY
// when the block is scoped to specific weekdays.
//
// now anchors DTSTART on today's date in loc; recurrence carries the
// schedule forward from there.
func Export(blocks []model.ScheduleBlock, loc *time.Location, now time.Time) (string, error) {
	if loc == nil {
		loc = time.Local
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//lockin//schedule//EN")

	day := now.In(loc)
	for _, b := range blocks {
		startMin, ok := schedule.ClockMinutes(b.Start)
		if !ok {
			return "", fmt.Errorf("ical: block %q has malformed start %q", b.ID, b.Start)
		}
		endMin, ok := schedule.ClockMinutes(b.End)
		if !ok {
			return "", fmt.Errorf("ical: block %q has malformed end %q", b.ID, b.End)
		}

		ev := cal.AddEvent(b.ID)
		ev.SetDtStampTime(now.UTC())
		ev.SetSummary(b.Activity)
		if b.Category != "" {
			ev.SetDescription("category: " + string(b.Category))
		}
		ev.SetStartAt(atMinutes(day, startMin, loc))
		ev.SetEndAt(atMinutes(day, endMin, loc))
		ev.AddRrule(recurrenceRule(b.Days))
	}

	return cal.Serialize(), nil
}

func recurrenceRule(days []time.Weekday) string {
	if len(days) == 0 {
		return "FREQ=DAILY"
	}
	tokens := make([]string, 0, len(days))
	for _, d := range days {
		tokens = append(tokens, rruleDay[int(d)%7])
	}
	return "FREQ=WEEKLY;BYDAY=" + strings.Join(tokens, ",")
}

func atMinutes(day time.Time, minutes int, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, loc)
}
