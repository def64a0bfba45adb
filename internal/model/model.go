package model

import "time"

// Category is a coarse activity tag assigned by the schedule parser's
// keyword heuristic. It only affects display grouping; scheduling and
// verification ignore it.
type Category string

const (
	CategoryFitness   Category = "fitness"
	CategoryClass     Category = "class"
	CategoryDeepFocus Category = "deep-focus"
	CategoryBreak     Category = "break"
	CategoryStudy     Category = "study"
)

// ScheduleBlock is one scheduled activity with a wall-clock start/end.
// Within one schedule, blocks are sorted by Start and never overlap.
type ScheduleBlock struct {
	// ID is an opaque stable identifier, unique within a schedule.
	ID string `json:"id"`

	// Start / End are zero-padded "HH:MM" time-of-day strings, Start < End.
	Start string `json:"start"`
	End   string `json:"end"`

	// Activity is the free-text label shown to the user.
	Activity string `json:"activity"`

	Category Category `json:"category"`

	// Days optionally scopes the block to specific weekdays. Empty means
	// the block applies every day.
	Days []time.Weekday `json:"days,omitempty"`
}

// ActiveOn reports whether the block applies on the given weekday.
func (b ScheduleBlock) ActiveOn(day time.Weekday) bool {
	if len(b.Days) == 0 {
		return true
	}
	for _, d := range b.Days {
		if d == day {
			return true
		}
	}
	return false
}

// VerificationLog is the outcome of one AI proof verification for a block.
// Logs are written once per block per day by the verification flow and are
// read-only to the aggregation core.
type VerificationLog struct {
	BlockID string `json:"block_id"`

	// Date is the local day the proof was submitted for, as "2006-01-02".
	Date string `json:"date"`

	Verified   bool `json:"verified"`
	FocusScore int  `json:"focus_score"` // 0–10

	Critique     string   `json:"critique"`
	Distractions []string `json:"distractions"`
}

// DaySummary is a day's completion statistics folded from verification
// logs against the schedule.
type DaySummary struct {
	Date string `json:"date"`

	TotalBlocks    int  `json:"total_blocks"`
	CompletedCount int  `json:"completed_count"`
	CompletionRate int  `json:"completion_rate"` // rounded percentage
	AvgFocusScore  int  `json:"avg_focus_score"` // rounded, 0 when none completed
	AllComplete    bool `json:"all_complete"`
}

// Preferences holds per-user notification settings.
type Preferences struct {
	Name         string `json:"name"`
	PushEnabled  bool   `json:"push_enabled"`
	EmailEnabled bool   `json:"email_enabled"`
	Email        string `json:"email"`

	// LeadMinutes is how long before a block's start its reminder fires.
	// Zero means the server default applies.
	LeadMinutes int `json:"lead_minutes"`
}
