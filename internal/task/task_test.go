package task

import (
	"errors"
	"testing"
	"time"
)

func TestStorePutGet(t *testing.T) {
	s := NewStore(nil)

	s.Put(Task{ID: "t1", Content: "pay rent", Priority: PriorityHigh, Status: StatusPending})

	got, err := s.Get("t1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Content != "pay rent" {
		t.Errorf("Content = %q", got.Content)
	}

	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestStoreApplyRefreshesUpdatedAt(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s := NewStore(func() time.Time { return now })

	created := now.Add(-time.Hour)
	s.Put(Task{ID: "t1", Status: StatusPending, Priority: PriorityLow, CreatedAt: created, UpdatedAt: created})

	status := StatusInProgress
	got, err := s.Apply("t1", Update{Status: &status})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got.Status != StatusInProgress {
		t.Errorf("Status = %s", got.Status)
	}
	if got.Priority != PriorityLow {
		t.Errorf("Priority changed unexpectedly: %s", got.Priority)
	}
	if !got.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, now)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed: %v", got.CreatedAt)
	}

	if _, err := s.Apply("missing", Update{Status: &status}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Apply missing = %v, want ErrNotFound", err)
	}
}

func TestStoreMarkReminderSent(t *testing.T) {
	s := NewStore(nil)
	s.Put(Task{ID: "t1"})

	s.MarkReminderSent("t1")
	s.MarkReminderSent("missing") // no-op

	got, err := s.Get("t1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.ReminderSent {
		t.Error("ReminderSent not set")
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	s := NewStore(nil)
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s.Put(Task{ID: "old", CreatedAt: base})
	s.Put(Task{ID: "new", CreatedAt: base.Add(time.Hour)})
	s.Put(Task{ID: "mid", CreatedAt: base.Add(30 * time.Minute)})

	got := s.List()
	if len(got) != 3 {
		t.Fatalf("List returned %d, want 3", len(got))
	}
	want := []string{"new", "mid", "old"}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("List[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestStoreDelete(t *testing.T) {
	s := NewStore(nil)
	s.Put(Task{ID: "t1"})

	s.Delete("t1")
	s.Delete("t1") // idempotent

	if _, err := s.Get("t1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestValidation(t *testing.T) {
	for _, p := range []Priority{PriorityHigh, PriorityMedium, PriorityLow} {
		if !p.Valid() {
			t.Errorf("%s not valid", p)
		}
	}
	if Priority("severe").Valid() {
		t.Error("unknown priority accepted")
	}

	for _, st := range []Status{StatusPending, StatusInProgress, StatusCompleted} {
		if !st.Valid() {
			t.Errorf("%s not valid", st)
		}
	}
	if Status("done").Valid() {
		t.Error("unknown status accepted")
	}
}
