package intent

import (
	"strings"
	"time"

	"ruleminder/internal/task"
)

// actionDraft is a task in the making: content plus a due time and priority
// that the override chain may still rewrite.
type actionDraft struct {
	content  string
	due      time.Time
	priority task.Priority
}

// actionPattern maps response vocabulary to a drafted action and its default
// due offset from now.
type actionPattern struct {
	triggers []string
	content  string
	offset   time.Duration
}

var actionPatterns = []actionPattern{
	{triggers: []string{"reschedule", "change time"}, content: "Reschedule conflicting appointment", offset: 2 * time.Hour},
	{triggers: []string{"cancel", "skip"}, content: "Cancel lower priority activity", offset: time.Hour},
	{triggers: []string{"check", "verify"}, content: "Verify schedule and requirements", offset: 4 * time.Hour},
}

// extractActionItems scans the drafted response for action verbs and returns
// one draft per matching pattern, each with the pattern's default due offset
// and the given default priority. When nothing matches, a single catch-all
// "Handle" draft for the original input is produced (at +24h).
func extractActionItems(input, response string, now time.Time, defaultPriority task.Priority) []actionDraft {
	lower := strings.ToLower(response)

	var drafts []actionDraft
	for _, p := range actionPatterns {
		if containsAny(lower, p.triggers) {
			drafts = append(drafts, actionDraft{
				content:  p.content,
				due:      now.Add(p.offset),
				priority: defaultPriority,
			})
		}
	}

	if len(drafts) == 0 && strings.TrimSpace(input) != "" {
		drafts = append(drafts, actionDraft{
			content:  "Handle: " + strings.TrimSpace(input),
			due:      now.Add(24 * time.Hour),
			priority: defaultPriority,
		})
	}
	return drafts
}

// applyOverrides runs the post-drafting override chain, strongest signal first:
//
//  1. a due date parsed from the input replaces every draft's default offset;
//  2. urgency vocabulary forces high priority and a due time of now+30m;
//  3. otherwise an urgent timeframe forces high priority, with now+8h for
//     any draft still lacking a due time.
func applyOverrides(input string, drafts []actionDraft, now time.Time) []actionDraft {
	if due, ok := ParseDueDate(input, now); ok {
		for i := range drafts {
			drafts[i].due = due
		}
	}

	switch {
	case hasUrgencyVocab(input):
		for i := range drafts {
			drafts[i].priority = task.PriorityHigh
			drafts[i].due = now.Add(30 * time.Minute)
		}
	case hasUrgentTimeframe(input):
		for i := range drafts {
			drafts[i].priority = task.PriorityHigh
			if drafts[i].due.IsZero() {
				drafts[i].due = now.Add(8 * time.Hour)
			}
		}
	}
	return drafts
}

// defaultDraft synthesizes the single fallback item used when extraction
// produced nothing at all.
func defaultDraft(input string, now time.Time) actionDraft {
	due, ok := ParseDueDate(input, now)
	if !ok {
		due = now.Add(24 * time.Hour)
	}

	lower := strings.ToLower(input)
	var priority task.Priority
	switch {
	case due.Sub(now) <= 24*time.Hour:
		priority = task.PriorityHigh
	case containsAny(lower, urgencyWords):
		priority = task.PriorityHigh
	case containsAny(lower, meetingWords):
		priority = task.PriorityMedium
	default:
		priority = task.PriorityLow
	}

	return actionDraft{
		content:  "Handle: " + strings.TrimSpace(input),
		due:      due,
		priority: priority,
	}
}
