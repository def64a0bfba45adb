package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	appLog "lockin/internal/log"
	"lockin/internal/model"
	"lockin/internal/schedule"
)

// DefaultLeadMinutes applies when preferences carry no lead time.
const DefaultLeadMinutes = 10

// Pusher delivers a local notification to the user's session.
type Pusher interface {
	Push(title, body string)
}

// EmailSender delivers a reminder email. Failures are the sender's to
// report; the scheduler logs and swallows them.
type EmailSender interface {
	SendReminder(ctx context.Context, to, name, activity, startTime string, leadMinutes int) error
}

// Scheduler owns the armed reminder timers for one user session. Its only
// mutators are ArmAll and CancelAll; there is no per-timer cancellation.
//
// The scheduler keeps nothing on disk: a process restart silently loses
// all armed timers until ArmAll runs again.
type Scheduler struct {
	pusher Pusher
	email  EmailSender

	// now is the clock source; swapped in tests.
	now func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer // block ID → armed timer
}

// New constructs a Scheduler. Either collaborator may be nil; the
// corresponding channel is then skipped regardless of preferences.
func New(pusher Pusher, email EmailSender) *Scheduler {
	return &Scheduler{
		pusher: pusher,
		email:  email,
		now:    time.Now,
		timers: make(map[string]*time.Timer),
	}
}

// ArmAll cancels every previously armed timer, then arms one timer per
// upcoming block whose lead window has not yet passed. Blocks already
// started (or finished) today are never re-armed, and a block whose
// reminder moment is already behind us is silently dropped rather than
// fired immediately. Returns the number of timers armed.
func (s *Scheduler) ArmAll(blocks []model.ScheduleBlock, prefs model.Preferences) int {
	lead := prefs.LeadMinutes
	if lead <= 0 {
		lead = DefaultLeadMinutes
	}

	now := s.now()
	nowMin := now.Hour()*60 + now.Minute()

	// Cancel and re-arm under one lock so a concurrent ArmAll cannot
	// interleave between the two phases and leave an orphaned timer
	// firing for a block that was re-armed.
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}

	armed := 0
	for _, b := range blocks {
		if !b.ActiveOn(now.Weekday()) {
			continue
		}
		startMin, ok := schedule.ClockMinutes(b.Start)
		if !ok {
			appLog.Warn("reminder: skipping block with malformed start", nil, "block", b.ID, "start", b.Start)
			continue
		}
		if startMin <= nowMin {
			// Already started or finished today; no catch-up firing.
			continue
		}
		fireIn := startMin - lead - nowMin
		if fireIn <= 0 {
			// Lead window already passed.
			continue
		}

		blk := b
		s.timers[b.ID] = time.AfterFunc(time.Duration(fireIn)*time.Minute, func() {
			s.fire(blk, prefs, lead)
		})
		armed++
	}

	appLog.Info("reminders armed", "count", armed, "lead_minutes", lead)
	return armed
}

// CancelAll destroys every outstanding timer. Safe to call at any time,
// including with no timers armed.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// ArmedCount returns the number of currently armed timers.
func (s *Scheduler) ArmedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scheduler) fire(b model.ScheduleBlock, prefs model.Preferences, lead int) {
	s.mu.Lock()
	delete(s.timers, b.ID)
	s.mu.Unlock()

	if prefs.PushEnabled && s.pusher != nil {
		s.pusher.Push(
			fmt.Sprintf("%s in %d minutes", b.Activity, lead),
			fmt.Sprintf("Starts at %s. Get ready.", b.Start),
		)
	}

	if prefs.EmailEnabled && prefs.Email != "" && s.email != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.email.SendReminder(ctx, prefs.Email, prefs.Name, b.Activity, b.Start, lead); err != nil {
			// Reminders are a convenience, not a guarantee.
			appLog.Warn("reminder email send failed", err, "block", b.ID, "activity", b.Activity)
		}
	}
}
