package notify

import (
	"sync"
	"time"

	"lockin/internal/reminder"
)

// maxPendingPerUser caps how many undelivered notifications a user can
// accumulate before the oldest are discarded.
const maxPendingPerUser = 50

// Notification is one pending local notification, held until the user's
// client polls for it.
type Notification struct {
	Title string    `json:"title"`
	Body  string    `json:"body"`
	At    time.Time `json:"at"`
}

// Queue is the server-side stand-in for browser-local push: reminder
// timers append here, and the web layer drains a user's pending items on
// poll. Contents are in-memory only and lost on restart, like the timers
// that feed them.
type Queue struct {
	mu     sync.Mutex
	byUser map[string][]Notification
}

// NewQueue constructs an empty Queue.
func NewQueue() *Queue {
	return &Queue{byUser: make(map[string][]Notification)}
}

// Append adds a pending notification for a user, discarding the oldest
// entries beyond the per-user cap.
func (q *Queue) Append(userID string, n Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending := append(q.byUser[userID], n)
	if len(pending) > maxPendingPerUser {
		pending = pending[len(pending)-maxPendingPerUser:]
	}
	q.byUser[userID] = pending
}

// Drain returns and clears the user's pending notifications.
func (q *Queue) Drain(userID string) []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending := q.byUser[userID]
	delete(q.byUser, userID)
	if pending == nil {
		pending = []Notification{}
	}
	return pending
}

// PusherFor adapts the queue into a reminder.Pusher bound to one user.
func (q *Queue) PusherFor(userID string) reminder.Pusher {
	return &queuePusher{queue: q, userID: userID}
}

type queuePusher struct {
	queue  *Queue
	userID string
}

func (p *queuePusher) Push(title, body string) {
	p.queue.Append(p.userID, Notification{Title: title, Body: body, At: time.Now()})
}
