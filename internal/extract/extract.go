// Package extract turns uploaded documents into line-oriented candidate
// rules. It is the document-ingestion collaborator: the engine itself never
// sees raw documents, only the Rule records produced here.
package extract

import (
	"fmt"
	"strings"
)

// minRuleLength filters out fragments too short to be a usable rule.
const minRuleLength = 10

// Candidate is an extracted rule before it gets an id and a fingerprint.
type Candidate struct {
	Content  string
	Priority int // 1-10
	Category string
}

// Rules extracts candidate rules from document data of the given type.
// Supported types: text, markdown, csv, json, pdf, html. Unknown types are
// rejected so the upload surface can report them.
func Rules(docType string, data []byte) ([]Candidate, error) {
	switch strings.ToLower(docType) {
	case "text", "txt", "markdown", "md":
		return fromText(string(data)), nil
	case "csv":
		return fromCSV(data)
	case "json":
		return fromJSON(data)
	case "pdf":
		return fromPDF(data)
	case "html":
		return fromHTML(data)
	default:
		return nil, fmt.Errorf("unsupported document type %q", docType)
	}
}

// fromText treats every sufficiently long line as a candidate rule. List
// markers and markdown emphasis are stripped first.
func fromText(text string) []Candidate {
	var out []Candidate
	for _, line := range strings.Split(text, "\n") {
		line = cleanLine(line)
		if len(line) < minRuleLength {
			continue
		}
		out = append(out, Candidate{
			Content:  line,
			Priority: inferPriority(line),
			Category: inferCategory(line),
		})
	}
	return out
}

func cleanLine(line string) string {
	line = strings.TrimSpace(line)
	for _, marker := range []string{"- ", "* ", "+ ", "• "} {
		line = strings.TrimPrefix(line, marker)
	}
	line = strings.TrimLeft(line, "#")
	return strings.TrimSpace(line)
}

// inferPriority maps urgency vocabulary in the rule text to a 1-10 priority.
// Rules without any signal land in the middle of the scale.
func inferPriority(content string) int {
	lower := strings.ToLower(content)
	switch {
	case containsAny(lower, "always", "never", "must", "critical", "emergency"):
		return 9
	case containsAny(lower, "urgent", "important", "priority", "immediately"):
		return 7
	case containsAny(lower, "should", "prefer", "avoid"):
		return 5
	case containsAny(lower, "try to", "when possible", "ideally"):
		return 3
	default:
		return 5
	}
}

// inferCategory tags the rule with a coarse topic for the dashboard.
func inferCategory(content string) string {
	lower := strings.ToLower(content)
	switch {
	case containsAny(lower, "meeting", "appointment", "calendar", "schedule"):
		return "scheduling"
	case containsAny(lower, "deadline", "due", "deliver"):
		return "deadlines"
	case containsAny(lower, "client", "customer"):
		return "clients"
	case containsAny(lower, "cancel", "priority", "important"):
		return "priorities"
	default:
		return ""
	}
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func clampPriority(p int) int {
	if p < 1 {
		return 1
	}
	if p > 10 {
		return 10
	}
	return p
}
