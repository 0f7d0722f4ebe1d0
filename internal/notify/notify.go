// Package notify carries reminder notifications from the scheduler to
// whatever surfaces want them (log, websocket dashboard, tests).
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Notification is the event delivered when a reminder fires.
type Notification struct {
	ReminderID    string    `json:"reminder_id"`
	TaskID        string    `json:"task_id"`
	Message       string    `json:"message"`
	Priority      string    `json:"priority"`
	ScheduledTime time.Time `json:"scheduled_time"`
}

// Sink receives fired reminder notifications.
type Sink interface {
	Notify(n Notification)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(n Notification)

func (f SinkFunc) Notify(n Notification) { f(n) }

// SlogSink logs notifications through slog. Used as the default sink when no
// dashboard is connected.
type SlogSink struct {
	Logger *slog.Logger
}

func (s *SlogSink) Notify(n Notification) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("reminder fired",
		"reminder_id", n.ReminderID,
		"task_id", n.TaskID,
		"priority", n.Priority,
		"message", n.Message,
	)
}

// Hub fans notifications out to any number of subscribers. Slow subscribers
// drop events rather than block the scheduler's timer callback.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Notification]struct{}
	next Sink // optional downstream sink, always notified
}

// NewHub returns a Hub that forwards every notification to next (may be nil)
// in addition to all subscribers.
func NewHub(next Sink) *Hub {
	return &Hub{subs: make(map[chan Notification]struct{}), next: next}
}

// Notify implements Sink.
func (h *Hub) Notify(n Notification) {
	h.mu.Lock()
	for ch := range h.subs {
		select {
		case ch <- n:
		default: // subscriber is not keeping up
		}
	}
	h.mu.Unlock()

	if h.next != nil {
		h.next.Notify(n)
	}
}

// Subscribe registers a new subscriber and returns its channel along with an
// unsubscribe function. The channel is buffered; events overflowing the
// buffer are dropped for that subscriber.
func (h *Hub) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, 16)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
}
