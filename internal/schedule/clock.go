package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Clock helpers operate on "minutes since midnight" so that parsing,
// validation and reminder arithmetic all share one representation.

// ParseClock parses a clock token as it may appear in raw schedule text:
// "7:30", "07:30", "7:30 PM", "7:30pm", and (for permissive document
// passes) bare-hour forms like "7AM" or "11 pm". It returns minutes since
// midnight.
func ParseClock(tok string) (int, error) {
	s := strings.TrimSpace(tok)
	if s == "" {
		return 0, errors.New("empty clock token")
	}

	// Peel off a trailing AM/PM marker, with or without a space and with
	// optional dots ("a.m.").
	upper := strings.ToUpper(s)
	upper = strings.ReplaceAll(upper, ".", "")
	meridiem := ""
	switch {
	case strings.HasSuffix(upper, "AM"):
		meridiem = "AM"
		upper = strings.TrimSpace(strings.TrimSuffix(upper, "AM"))
	case strings.HasSuffix(upper, "PM"):
		meridiem = "PM"
		upper = strings.TrimSpace(strings.TrimSuffix(upper, "PM"))
	}

	hourStr := upper
	minuteStr := "0"
	if i := strings.IndexByte(upper, ':'); i >= 0 {
		hourStr = upper[:i]
		minuteStr = upper[i+1:]
	}

	hour, err := strconv.Atoi(strings.TrimSpace(hourStr))
	if err != nil {
		return 0, fmt.Errorf("bad hour in %q", tok)
	}
	minute, err := strconv.Atoi(strings.TrimSpace(minuteStr))
	if err != nil {
		return 0, fmt.Errorf("bad minute in %q", tok)
	}
	if minute < 0 || minute > 59 {
		return 0, fmt.Errorf("minute out of range in %q", tok)
	}

	switch meridiem {
	case "AM":
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("hour out of range in %q", tok)
		}
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("hour out of range in %q", tok)
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour < 0 || hour > 23 {
			return 0, fmt.Errorf("hour out of range in %q", tok)
		}
	}

	return hour*60 + minute, nil
}

// FormatClock renders minutes since midnight as zero-padded "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ClockMinutes converts a canonical zero-padded "HH:MM" string into
// minutes since midnight. ok is false for anything that is not strictly
// well-formed ("7:30" is rejected; the parser normalizes before storage).
func ClockMinutes(s string) (int, bool) {
	if len(s) != 5 || s[2] != ':' {
		return 0, false
	}
	for _, i := range [...]int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	hour := int(s[0]-'0')*10 + int(s[1]-'0')
	minute := int(s[3]-'0')*10 + int(s[4]-'0')
	if hour > 23 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}

// IsClock reports whether s is a well-formed zero-padded "HH:MM".
func IsClock(s string) bool {
	_, ok := ClockMinutes(s)
	return ok
}
