package intent

import (
	"regexp"
	"strings"

	"ruleminder/internal/index"
)

// Keyword groups driving classification. Kept as data so each predicate stays
// a pure function of its input.
var (
	sameDayWords  = []string{"today", "tonight", "this evening"}
	dayWords      = []string{"today", "tomorrow", "yesterday", "tonight"}
	urgencyWords  = []string{"urgent", "emergency", "asap", "critical", "immediately"}
	conflictWords = []string{"conflict", "overlap", "clash", "schedule", "double-book"}
	priorityWords = []string{"priority", "cancel", "important", "precedence"}
	meetingWords  = []string{"meeting", "appointment", "deadline", "client"}
)

var (
	clockTimeRE  = regexp.MustCompile(`\b\d{1,2}:\d{2}\b|\b\d{1,2}\s*(?:am|pm)\b`)
	atTimeRE     = regexp.MustCompile(`\b(?:at|by|before)\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
	inHoursRE    = regexp.MustCompile(`\bin\s+(\d+)\s+hours?\b`)
	withinHourRE = regexp.MustCompile(`\bwithin\s+an?\s+hour\b`)
)

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// hasTimeReference reports whether the input mentions a clock time or a
// relative day.
func hasTimeReference(input string) bool {
	lower := strings.ToLower(input)
	return containsAny(lower, dayWords) || clockTimeRE.MatchString(lower)
}

// hasUrgencyVocab reports whether the input uses urgency vocabulary.
func hasUrgencyVocab(input string) bool {
	return containsAny(strings.ToLower(input), urgencyWords)
}

// hasUrgentTimeframe reports whether the input's timeframe is urgent:
// same-day phrasing, an explicit "in N hours", "within an hour", or plain
// urgency vocabulary.
func hasUrgentTimeframe(input string) bool {
	lower := strings.ToLower(input)
	return containsAny(lower, sameDayWords) ||
		inHoursRE.MatchString(lower) ||
		withinHourRE.MatchString(lower) ||
		containsAny(lower, urgencyWords)
}

// rulesMention reports whether any retrieved rule's content contains one of
// the given words.
func rulesMention(results []index.SearchResult, words []string) bool {
	for _, r := range results {
		if containsAny(strings.ToLower(r.Rule.Content), words) {
			return true
		}
	}
	return false
}

func rulesMatching(results []index.SearchResult, words []string) []index.Rule {
	var out []index.Rule
	for _, r := range results {
		if containsAny(strings.ToLower(r.Rule.Content), words) {
			out = append(out, r.Rule)
		}
	}
	return out
}
