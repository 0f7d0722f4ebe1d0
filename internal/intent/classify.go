package intent

import (
	"fmt"
	"strings"

	"ruleminder/internal/index"
)

// classifier is one (predicate, handler) pair. Classifiers are evaluated in
// order and the first match wins; later predicates are never consulted.
type classifier struct {
	name    string
	matches func(input string, results []index.SearchResult) bool
	respond func(input string, results []index.SearchResult) string
}

// classifiers is the ordered classification chain: time conflict, then
// priority conflict, then the generic paraphrase fallback.
var classifiers = []classifier{
	{
		name: "time_conflict",
		matches: func(input string, results []index.SearchResult) bool {
			return hasTimeReference(input) && rulesMention(results, conflictWords)
		},
		respond: timeConflictResponse,
	},
	{
		name: "priority_conflict",
		matches: func(input string, results []index.SearchResult) bool {
			return hasUrgencyVocab(input) && rulesMention(results, priorityWords)
		},
		respond: priorityConflictResponse,
	},
	{
		name: "default",
		matches: func(string, []index.SearchResult) bool {
			return true
		},
		respond: defaultResponse,
	},
}

func classify(input string, results []index.SearchResult) string {
	for _, c := range classifiers {
		if c.matches(input, results) {
			return c.respond(input, results)
		}
	}
	// Unreachable: the default classifier always matches.
	return defaultResponse(input, results)
}

func timeConflictResponse(_ string, results []index.SearchResult) string {
	var b strings.Builder
	b.WriteString("This may clash with your existing schedule. Check your calendar before committing.")
	for _, r := range rulesMatching(results, conflictWords) {
		b.WriteString("\n- ")
		b.WriteString(r.Content)
	}
	return b.String()
}

func priorityConflictResponse(_ string, results []index.SearchResult) string {
	top := results[0].Rule
	for _, r := range results[1:] {
		if r.Rule.Priority > top.Priority {
			top = r.Rule
		}
	}
	return fmt.Sprintf(
		"This rule takes precedence (priority %d): %s Cancel or postpone the lower priority activity.",
		top.Priority, top.Content)
}

func defaultResponse(_ string, results []index.SearchResult) string {
	return "Based on your rules, keep in mind: " + results[0].Rule.Content
}
