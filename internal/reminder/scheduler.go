// Package reminder computes when tasks should notify the user and manages
// one pending one-shot timer per active reminder.
package reminder

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ruleminder/internal/notify"
	"ruleminder/internal/task"
)

// graceWindow is how far in the past a requested reminder time may lie and
// still fire immediately. Anything staler is dropped silently.
const graceWindow = 5 * time.Minute

// Type distinguishes reminder phrasing templates.
type Type string

const (
	TypeDeadline    Type = "deadline"
	TypePreparation Type = "preparation"
	TypeFollowup    Type = "followup"
)

// Reminder is a pending or fired notification for a task. TaskID is a weak
// reference; the scheduler does not own the task.
type Reminder struct {
	ID            string        `json:"id"`
	TaskID        string        `json:"task_id"`
	Message       string        `json:"message"`
	ScheduledTime time.Time     `json:"scheduled_time"`
	Priority      task.Priority `json:"priority"` // copied from the task at creation time
	Sent          bool          `json:"sent"`
	Type          Type          `json:"type"`
}

// Clock abstracts time.Now for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Handle is a cancellable armed timer.
type Handle interface {
	Stop() bool
}

// Timers arms deferred callbacks. The production implementation is
// time.AfterFunc; tests substitute a manual implementation.
type Timers interface {
	After(d time.Duration, fn func()) Handle
}

type systemTimers struct{}

func (systemTimers) After(d time.Duration, fn func()) Handle {
	return time.AfterFunc(d, fn)
}

type pendingEntry struct {
	rem    Reminder
	handle Handle
}

// Scheduler owns the pending-timer table. All mutation is serialized behind
// one mutex; a cancelled reminder is guaranteed not to fire once Cancel
// returns, because firing re-checks the table under the same mutex.
type Scheduler struct {
	mu      sync.Mutex
	pending map[string]*pendingEntry

	clock  Clock
	timers Timers
	sink   notify.Sink
	newID  func() string
	logger *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock substitutes the time source.
func WithClock(c Clock) Option { return func(s *Scheduler) { s.clock = c } }

// WithTimers substitutes the timer implementation.
func WithTimers(t Timers) Option { return func(s *Scheduler) { s.timers = t } }

// WithIDGenerator substitutes the reminder id generator.
func WithIDGenerator(fn func() string) Option { return func(s *Scheduler) { s.newID = fn } }

// NewScheduler creates a Scheduler delivering notifications to sink.
func NewScheduler(sink notify.Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		pending: make(map[string]*pendingEntry),
		clock:   systemClock{},
		timers:  systemTimers{},
		sink:    sink,
		newID:   func() string { return uuid.New().String() },
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule creates a reminder for t firing at reminderTime and arms its
// timer. A time within the grace window of the past fires immediately; a
// staler time is dropped and Schedule returns nil. Scheduling does not dedupe
// per task — callers that reschedule use CancelForTask first.
func (s *Scheduler) Schedule(t task.Task, reminderTime time.Time, typ Type) *Reminder {
	if typ == "" {
		typ = TypeDeadline
	}

	now := s.clock.Now()
	rem := Reminder{
		ID:            s.newID(),
		TaskID:        t.ID,
		Message:       composeMessage(typ, t.Priority, t.Content),
		ScheduledTime: reminderTime,
		Priority:      t.Priority,
		Type:          typ,
	}

	delay := reminderTime.Sub(now)
	if delay <= 0 {
		if -delay > graceWindow {
			s.logger.Warn("dropping stale reminder",
				"task_id", t.ID, "scheduled_time", reminderTime, "behind", -delay)
			return nil
		}
		rem.Sent = true
		s.deliver(rem)
		return &rem
	}

	s.mu.Lock()
	entry := &pendingEntry{rem: rem}
	s.pending[rem.ID] = entry
	entry.handle = s.timers.After(delay, func() { s.fire(rem.ID) })
	s.mu.Unlock()

	return &rem
}

// fire is the timer callback: it marks the reminder sent, removes it from
// the pending table and notifies the sink. A reminder cancelled between the
// timer going off and the callback acquiring the mutex is a no-op.
func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	entry, ok := s.pending[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	entry.rem.Sent = true
	rem := entry.rem
	s.mu.Unlock()

	s.deliver(rem)
}

func (s *Scheduler) deliver(rem Reminder) {
	s.sink.Notify(notify.Notification{
		ReminderID:    rem.ID,
		TaskID:        rem.TaskID,
		Message:       rem.Message,
		Priority:      string(rem.Priority),
		ScheduledTime: rem.ScheduledTime,
	})
}

// Cancel disarms and removes a pending reminder. Unknown or already-fired
// ids are a no-op.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(id)
}

func (s *Scheduler) cancelLocked(id string) {
	entry, ok := s.pending[id]
	if !ok {
		return
	}
	if entry.handle != nil {
		entry.handle.Stop()
	}
	delete(s.pending, id)
}

// CancelForTask cancels every non-fired reminder belonging to taskID.
func (s *Scheduler) CancelForTask(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.pending {
		if entry.rem.TaskID == taskID {
			s.cancelLocked(id)
		}
	}
}

// Upcoming returns non-fired reminders scheduled within
// [now, now+windowHours], sorted ascending by scheduled time.
func (s *Scheduler) Upcoming(windowHours int) []Reminder {
	now := s.clock.Now()
	horizon := now.Add(time.Duration(windowHours) * time.Hour)

	s.mu.Lock()
	out := make([]Reminder, 0, len(s.pending))
	for _, entry := range s.pending {
		st := entry.rem.ScheduledTime
		if !st.Before(now) && !st.After(horizon) {
			out = append(out, entry.rem)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledTime.Before(out[j].ScheduledTime)
	})
	return out
}

// PendingCount returns the number of armed reminders.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// composeMessage builds the notification text from the reminder type and the
// task's priority. Preparation wins over followup when both could apply.
func composeMessage(typ Type, p task.Priority, content string) string {
	var tag string
	switch p {
	case task.PriorityHigh:
		tag = "[HIGH] "
	case task.PriorityMedium:
		tag = "[MEDIUM] "
	case task.PriorityLow:
		tag = "[LOW] "
	}

	switch typ {
	case TypePreparation:
		return tag + "Prepare for: " + content
	case TypeFollowup:
		return tag + "Follow up on: " + content
	default:
		return tag + "Due soon: " + content
	}
}
