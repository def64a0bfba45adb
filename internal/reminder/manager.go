package reminder

import (
	"sync"

	"lockin/internal/model"
)

// Manager owns one Scheduler per user, so that re-initializing one user's
// reminders (login, schedule change) does not disturb anyone else's.
type Manager struct {
	email       EmailSender
	pusherFor   func(userID string) Pusher
	defaultLead int

	mu         sync.Mutex
	schedulers map[string]*Scheduler
}

// NewManager constructs a Manager. pusherFor may be nil, in which case no
// push notifications are delivered. defaultLead is the configured lead
// time applied to users whose preferences carry none; zero falls back to
// DefaultLeadMinutes.
func NewManager(email EmailSender, pusherFor func(userID string) Pusher, defaultLead int) *Manager {
	return &Manager{
		email:       email,
		pusherFor:   pusherFor,
		defaultLead: defaultLead,
		schedulers:  make(map[string]*Scheduler),
	}
}

// Rearm cancels the user's outstanding timers and re-arms from the given
// schedule. The configured default lead is applied here so every rearm
// path (HTTP and cron) resolves it the same way. Returns the number of
// timers armed.
func (m *Manager) Rearm(userID string, blocks []model.ScheduleBlock, prefs model.Preferences) int {
	if prefs.LeadMinutes <= 0 {
		prefs.LeadMinutes = m.defaultLead
	}
	return m.schedulerFor(userID).ArmAll(blocks, prefs)
}

// ArmedCount returns the number of armed timers for a user.
func (m *Manager) ArmedCount(userID string) int {
	m.mu.Lock()
	s, ok := m.schedulers[userID]
	m.mu.Unlock()
	if !ok {
		return 0
	}
	return s.ArmedCount()
}

// CancelAll destroys every outstanding timer for every user. Used on
// shutdown.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.schedulers {
		s.CancelAll()
	}
}

func (m *Manager) schedulerFor(userID string) *Scheduler {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedulers[userID]
	if !ok {
		var pusher Pusher
		if m.pusherFor != nil {
			pusher = m.pusherFor(userID)
		}
		s = New(pusher, m.email)
		m.schedulers[userID] = s
	}
	return s
}
