// Package intent turns free-text statements into classified responses and
// prioritized, time-bound tasks, using indexed rules as the only knowledge
// source.
package intent

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ruleminder/internal/index"
	"ruleminder/internal/reminder"
	"ruleminder/internal/task"
)

// topRules is how many rules are retrieved per input.
const topRules = 3

const noRulesResponse = "No rules apply to this input yet. Upload documents to teach me your preferences."

// Response is the per-input result: drafted text, the rules that shaped it,
// and the engine's self-reported confidence in [0,100].
type Response struct {
	Response      string       `json:"response"`
	RelevantRules []index.Rule `json:"relevant_rules"`
	Confidence    float64      `json:"confidence"`
}

// Clock abstracts time.Now for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Engine orchestrates retrieval, classification and task synthesis. It never
// returns errors for missing knowledge: an empty index yields a fixed
// zero-confidence response and no tasks.
type Engine struct {
	index     *index.SimilarityIndex
	scheduler *reminder.Scheduler
	tasks     *task.Store

	clock  Clock
	newID  func() string
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock substitutes the time source.
func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

// WithIDGenerator substitutes the task id generator.
func WithIDGenerator(fn func() string) Option { return func(e *Engine) { e.newID = fn } }

// NewEngine wires an Engine to its index, scheduler and task store.
func NewEngine(idx *index.SimilarityIndex, sched *reminder.Scheduler, tasks *task.Store, opts ...Option) *Engine {
	e := &Engine{
		index:     idx,
		scheduler: sched,
		tasks:     tasks,
		clock:     systemClock{},
		newID:     func() string { return uuid.New().String() },
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessInput retrieves the rules most similar to text, classifies the
// situation and drafts a response. Confidence is min(100, 100×mean
// similarity) over the retrieved set, and exactly 0 when nothing was
// retrieved.
func (e *Engine) ProcessInput(text string) Response {
	results := e.index.Search(text, topRules)
	if len(results) == 0 {
		return Response{Response: noRulesResponse, RelevantRules: []index.Rule{}, Confidence: 0}
	}

	var sum float64
	rules := make([]index.Rule, len(results))
	for i, r := range results {
		rules[i] = r.Rule
		sum += float64(r.Score)
	}
	confidence := 100 * sum / float64(len(results))
	if confidence > 100 {
		confidence = 100
	}

	return Response{
		Response:      classify(text, results),
		RelevantRules: rules,
		Confidence:    confidence,
	}
}

// GenerateTasks runs ProcessInput, extracts action items from the drafted
// response, applies the override chain, and materializes Task records. Tasks
// carrying a due date get a reminder scheduled and the resulting reminder
// time recorded. An input matching no rules yields no tasks.
func (e *Engine) GenerateTasks(text string) []task.Task {
	resp := e.ProcessInput(text)
	if len(resp.RelevantRules) == 0 {
		return nil
	}

	now := e.clock.Now()

	drafts := extractActionItems(text, resp.Response, now, GetPriorityFromRules(resp.RelevantRules))
	drafts = applyOverrides(text, drafts, now)
	if len(drafts) == 0 {
		drafts = []actionDraft{defaultDraft(text, now)}
	}

	appliedRules := make([]string, len(resp.RelevantRules))
	for i, r := range resp.RelevantRules {
		appliedRules[i] = r.ID
	}

	tasks := make([]task.Task, 0, len(drafts))
	for _, d := range drafts {
		t := task.Task{
			ID:           e.newID(),
			Content:      d.content,
			Priority:     d.priority,
			Status:       task.StatusPending,
			AppliedRules: appliedRules,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if !d.due.IsZero() {
			due := d.due
			t.DueDate = &due

			rt := reminder.ComputeReminderTime(now, due, t.Priority)
			if rem := e.scheduler.Schedule(t, rt, reminder.TypeDeadline); rem != nil {
				st := rem.ScheduledTime
				t.ReminderTime = &st
			}
		}
		e.tasks.Put(t)
		tasks = append(tasks, t)
	}

	e.logger.Debug("generated tasks", "input_len", len(text), "count", len(tasks), "confidence", resp.Confidence)
	return tasks
}

// GetPriorityFromRules derives a task priority from a rule set: high when any
// rule is priority 8+, medium at 4+, low otherwise. An empty set defaults to
// medium.
func GetPriorityFromRules(rules []index.Rule) task.Priority {
	if len(rules) == 0 {
		return task.PriorityMedium
	}
	best := 0
	for _, r := range rules {
		if r.Priority > best {
			best = r.Priority
		}
	}
	switch {
	case best >= 8:
		return task.PriorityHigh
	case best >= 4:
		return task.PriorityMedium
	default:
		return task.PriorityLow
	}
}
