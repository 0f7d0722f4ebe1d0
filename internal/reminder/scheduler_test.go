package reminder

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"ruleminder/internal/notify"
	"ruleminder/internal/task"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type fakeTimer struct {
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

// fakeTimers records armed callbacks; tests fire them by hand.
type fakeTimers struct {
	mu     sync.Mutex
	armed  []*fakeTimer
	delays []time.Duration
}

func (f *fakeTimers) After(d time.Duration, fn func()) Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{fn: fn}
	f.armed = append(f.armed, t)
	f.delays = append(f.delays, d)
	return t
}

func (f *fakeTimers) fireAll() {
	f.mu.Lock()
	armed := f.armed
	f.armed = nil
	f.mu.Unlock()
	for _, t := range armed {
		if !t.stopped {
			t.fn()
		}
	}
}

type captureSink struct {
	mu   sync.Mutex
	seen []notify.Notification
}

func (s *captureSink) Notify(n notify.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, n)
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func newTestScheduler(t *testing.T, now time.Time) (*Scheduler, *fakeClock, *fakeTimers, *captureSink) {
	t.Helper()
	clock := &fakeClock{now: now}
	timers := &fakeTimers{}
	sink := &captureSink{}
	seq := 0
	s := NewScheduler(sink,
		WithClock(clock),
		WithTimers(timers),
		WithIDGenerator(func() string { seq++; return fmt.Sprintf("rem-%d", seq) }),
	)
	return s, clock, timers, sink
}

func testTask(id string, p task.Priority) task.Task {
	return task.Task{ID: id, Content: "submit the expense report", Priority: p}
}

func TestScheduleArmsTimerAndFires(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s, _, timers, sink := newTestScheduler(t, now)

	rem := s.Schedule(testTask("t1", task.PriorityHigh), now.Add(2*time.Hour), TypeDeadline)
	if rem == nil {
		t.Fatal("Schedule returned nil")
	}
	if rem.Sent {
		t.Error("reminder marked sent before firing")
	}
	if s.PendingCount() != 1 {
		t.Fatalf("PendingCount = %d, want 1", s.PendingCount())
	}
	if len(timers.delays) != 1 || timers.delays[0] != 2*time.Hour {
		t.Errorf("armed delay = %v, want 2h", timers.delays)
	}

	timers.fireAll()

	if sink.count() != 1 {
		t.Fatalf("sink got %d notifications, want 1", sink.count())
	}
	if s.PendingCount() != 0 {
		t.Errorf("PendingCount after fire = %d, want 0", s.PendingCount())
	}
	got := sink.seen[0]
	if got.TaskID != "t1" || got.ReminderID != rem.ID {
		t.Errorf("notification = %+v", got)
	}
	if !strings.HasPrefix(got.Message, "[HIGH] Due soon: ") {
		t.Errorf("message = %q", got.Message)
	}
}

func TestScheduleWithinGraceFiresImmediately(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s, _, timers, sink := newTestScheduler(t, now)

	rem := s.Schedule(testTask("t1", task.PriorityMedium), now.Add(-3*time.Minute), TypeDeadline)
	if rem == nil {
		t.Fatal("Schedule returned nil for time within grace window")
	}
	if !rem.Sent {
		t.Error("immediate reminder not marked sent")
	}
	if sink.count() != 1 {
		t.Errorf("sink got %d notifications, want 1", sink.count())
	}
	if len(timers.armed) != 0 {
		t.Errorf("timer armed for immediate reminder")
	}
	if s.PendingCount() != 0 {
		t.Errorf("PendingCount = %d, want 0", s.PendingCount())
	}
}

func TestScheduleStaleIsDropped(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s, _, _, sink := newTestScheduler(t, now)

	rem := s.Schedule(testTask("t1", task.PriorityLow), now.Add(-10*time.Minute), TypeDeadline)
	if rem != nil {
		t.Errorf("Schedule returned %+v for stale time, want nil", rem)
	}
	if sink.count() != 0 {
		t.Errorf("stale reminder was delivered")
	}
}

func TestCancelPreventsFiring(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s, _, timers, sink := newTestScheduler(t, now)

	rem := s.Schedule(testTask("t1", task.PriorityHigh), now.Add(time.Hour), TypeDeadline)
	s.Cancel(rem.ID)

	if s.PendingCount() != 0 {
		t.Errorf("PendingCount = %d, want 0", s.PendingCount())
	}

	// Even if the timer callback races the cancellation, the table re-check
	// must suppress delivery.
	timers.mu.Lock()
	armed := append([]*fakeTimer(nil), timers.armed...)
	timers.mu.Unlock()
	for _, tm := range armed {
		tm.fn()
	}

	if sink.count() != 0 {
		t.Errorf("cancelled reminder was delivered")
	}

	// Cancelling again is a no-op.
	s.Cancel(rem.ID)
	s.Cancel("no-such-id")
}

func TestCancelForTask(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s, _, _, _ := newTestScheduler(t, now)

	s.Schedule(testTask("t1", task.PriorityHigh), now.Add(time.Hour), TypeDeadline)
	s.Schedule(testTask("t1", task.PriorityHigh), now.Add(2*time.Hour), TypeFollowup)
	s.Schedule(testTask("t2", task.PriorityLow), now.Add(3*time.Hour), TypeDeadline)

	s.CancelForTask("t1")

	if s.PendingCount() != 1 {
		t.Fatalf("PendingCount = %d, want 1", s.PendingCount())
	}
	up := s.Upcoming(24)
	if len(up) != 1 || up[0].TaskID != "t2" {
		t.Errorf("Upcoming = %+v, want only t2", up)
	}
}

func TestUpcomingWindowAndOrder(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s, _, _, _ := newTestScheduler(t, now)

	s.Schedule(testTask("far", task.PriorityLow), now.Add(30*time.Hour), TypeDeadline)
	s.Schedule(testTask("late", task.PriorityLow), now.Add(10*time.Hour), TypeDeadline)
	s.Schedule(testTask("soon", task.PriorityLow), now.Add(time.Hour), TypeDeadline)

	up := s.Upcoming(24)
	if len(up) != 2 {
		t.Fatalf("Upcoming(24) returned %d, want 2", len(up))
	}
	if up[0].TaskID != "soon" || up[1].TaskID != "late" {
		t.Errorf("Upcoming order = [%s %s], want [soon late]", up[0].TaskID, up[1].TaskID)
	}
}

func TestComposeMessageTemplates(t *testing.T) {
	tests := []struct {
		typ      Type
		priority task.Priority
		want     string
	}{
		{TypeDeadline, task.PriorityHigh, "[HIGH] Due soon: pay rent"},
		{TypePreparation, task.PriorityMedium, "[MEDIUM] Prepare for: pay rent"},
		{TypeFollowup, task.PriorityLow, "[LOW] Follow up on: pay rent"},
	}
	for _, tt := range tests {
		if got := composeMessage(tt.typ, tt.priority, "pay rent"); got != tt.want {
			t.Errorf("composeMessage(%s, %s) = %q, want %q", tt.typ, tt.priority, got, tt.want)
		}
	}
}
