package task

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when a requested task does not exist.
var ErrNotFound = errors.New("task not found")

// Priority is the user-facing task priority.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Task is an actionable item synthesized from a single user input.
// AppliedRules references only rule ids that were actually retrieved for the
// input that produced the task.
type Task struct {
	ID           string     `json:"id"`
	Content      string     `json:"content"`
	Priority     Priority   `json:"priority"`
	Status       Status     `json:"status"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	ReminderTime *time.Time `json:"reminder_time,omitempty"`
	ReminderSent bool       `json:"reminder_sent"`
	AppliedRules []string   `json:"applied_rules"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Update carries an external task mutation (from the UI adapter). Nil fields
// are left unchanged.
type Update struct {
	Status   *Status    `json:"status,omitempty"`
	Priority *Priority  `json:"priority,omitempty"`
	DueDate  *time.Time `json:"due_date,omitempty"`
}

// Store holds tasks in memory for the engine's lifetime. It is the owned,
// bounded arena the engine originates tasks into; durability is the storage
// collaborator's concern.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]Task
	clock func() time.Time
}

// NewStore returns an empty task store. now may be nil, in which case
// time.Now is used.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{tasks: make(map[string]Task), clock: now}
}

// Put inserts or replaces a task.
func (s *Store) Put(t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
}

// Get returns the task with the given id.
func (s *Store) Get(id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

// Apply mutates a task with the given update and refreshes UpdatedAt.
// Returns the task as stored after the mutation.
func (s *Store) Apply(id string, u Update) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.DueDate != nil {
		t.DueDate = u.DueDate
	}
	t.UpdatedAt = s.clock()
	s.tasks[id] = t
	return t, nil
}

// MarkReminderSent flags the task's reminder as delivered.
func (s *Store) MarkReminderSent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return
	}
	t.ReminderSent = true
	t.UpdatedAt = s.clock()
	s.tasks[id] = t
}

// Delete removes a task. Deleting an unknown id is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}

// List returns all tasks sorted by creation time, newest first.
func (s *Store) List() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
