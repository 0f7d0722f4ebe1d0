package extract

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// fromCSV reads rules from CSV data. A header row naming a content/rule
// column is honored; otherwise the first column is the rule text, with an
// optional numeric priority in the second column and category in the third.
func fromCSV(data []byte) ([]Candidate, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	contentCol, priorityCol, categoryCol := 0, 1, 2
	start := 0
	if isHeader(rows[0]) {
		for i, name := range rows[0] {
			switch strings.ToLower(strings.TrimSpace(name)) {
			case "content", "rule", "text":
				contentCol = i
			case "priority":
				priorityCol = i
			case "category":
				categoryCol = i
			}
		}
		start = 1
	}

	var out []Candidate
	for _, row := range rows[start:] {
		if contentCol >= len(row) {
			continue
		}
		content := cleanLine(row[contentCol])
		if len(content) < minRuleLength {
			continue
		}
		c := Candidate{Content: content, Priority: inferPriority(content)}
		if priorityCol < len(row) {
			if p, err := strconv.Atoi(strings.TrimSpace(row[priorityCol])); err == nil {
				c.Priority = clampPriority(p)
			}
		}
		if categoryCol < len(row) {
			c.Category = strings.TrimSpace(row[categoryCol])
		}
		if c.Category == "" {
			c.Category = inferCategory(content)
		}
		out = append(out, c)
	}
	return out, nil
}

func isHeader(row []string) bool {
	for _, cell := range row {
		switch strings.ToLower(strings.TrimSpace(cell)) {
		case "content", "rule", "text", "priority", "category":
			return true
		}
	}
	return false
}

type jsonRule struct {
	Content  string `json:"content"`
	Rule     string `json:"rule"`
	Priority int    `json:"priority"`
	Category string `json:"category"`
}

// fromJSON accepts either a bare array of strings, an array of rule objects,
// or an object with a "rules" array of either shape.
func fromJSON(data []byte) ([]Candidate, error) {
	var wrapper struct {
		Rules json.RawMessage `json:"rules"`
	}
	if err := json.Unmarshal(data, &wrapper); err == nil && wrapper.Rules != nil {
		data = wrapper.Rules
	}

	var objects []jsonRule
	if err := json.Unmarshal(data, &objects); err == nil {
		return objectsToCandidates(objects), nil
	}

	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("parsing json rules: %w", err)
	}
	var out []Candidate
	for _, line := range lines {
		line = cleanLine(line)
		if len(line) < minRuleLength {
			continue
		}
		out = append(out, Candidate{Content: line, Priority: inferPriority(line), Category: inferCategory(line)})
	}
	return out, nil
}

func objectsToCandidates(objects []jsonRule) []Candidate {
	var out []Candidate
	for _, o := range objects {
		content := o.Content
		if content == "" {
			content = o.Rule
		}
		content = cleanLine(content)
		if len(content) < minRuleLength {
			continue
		}
		c := Candidate{Content: content, Priority: inferPriority(content), Category: o.Category}
		if o.Priority != 0 {
			c.Priority = clampPriority(o.Priority)
		}
		if c.Category == "" {
			c.Category = inferCategory(content)
		}
		out = append(out, c)
	}
	return out
}
