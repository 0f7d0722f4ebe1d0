package extract

import (
	"strings"
	"testing"
)

func TestRulesUnknownType(t *testing.T) {
	if _, err := Rules("docx", []byte("data")); err == nil {
		t.Error("expected error for unknown document type")
	}
}

func TestFromTextStripsMarkersAndFiltersShortLines(t *testing.T) {
	input := strings.Join([]string{
		"# House Rules",
		"",
		"- Always lock the front door before leaving",
		"* never leave the stove on unattended",
		"ok", // too short
		"Try to water the plants when possible",
	}, "\n")

	got, err := Rules("markdown", []byte(input))
	if err != nil {
		t.Fatalf("Rules: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d candidates, want 4: %+v", len(got), got)
	}
	if got[0].Content != "House Rules" {
		t.Errorf("heading not cleaned: %q", got[0].Content)
	}
	if got[1].Content != "Always lock the front door before leaving" {
		t.Errorf("list marker not stripped: %q", got[1].Content)
	}
	if got[1].Priority != 9 {
		t.Errorf("'always' rule priority = %d, want 9", got[1].Priority)
	}
	if got[3].Priority != 3 {
		t.Errorf("'try to' rule priority = %d, want 3", got[3].Priority)
	}
}

func TestInferPriority(t *testing.T) {
	tests := []struct {
		content string
		want    int
	}{
		{"never skip the morning standup", 9},
		{"urgent matters go to the top of the list", 7},
		{"prefer email over phone calls", 5},
		{"ideally review the budget monthly", 3},
		{"water the plants", 5},
	}
	for _, tt := range tests {
		if got := inferPriority(tt.content); got != tt.want {
			t.Errorf("inferPriority(%q) = %d, want %d", tt.content, got, tt.want)
		}
	}
}

func TestInferCategory(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"never double-book calendar slots", "scheduling"},
		{"deliver reports before the deadline", "deadlines"},
		{"client calls come first", "clients"},
		{"cancel optional events when overloaded", "priorities"},
		{"water the plants", ""},
	}
	for _, tt := range tests {
		if got := inferCategory(tt.content); got != tt.want {
			t.Errorf("inferCategory(%q) = %q, want %q", tt.content, got, tt.want)
		}
	}
}

func TestFromCSVWithHeader(t *testing.T) {
	input := "rule,priority,category\n" +
		"Always back up the database nightly,8,operations\n" +
		"short,2,\n" +
		"Prefer video calls for remote interviews,,\n"

	got, err := Rules("csv", []byte(input))
	if err != nil {
		t.Fatalf("Rules: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2: %+v", len(got), got)
	}
	if got[0].Priority != 8 || got[0].Category != "operations" {
		t.Errorf("explicit columns not honored: %+v", got[0])
	}
	if got[1].Priority != 5 {
		t.Errorf("missing priority should fall back to inference, got %d", got[1].Priority)
	}
}

func TestFromCSVWithoutHeader(t *testing.T) {
	input := "Check the tires before long drives,6,car\n"

	got, err := Rules("csv", []byte(input))
	if err != nil {
		t.Fatalf("Rules: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
	if got[0].Priority != 6 || got[0].Category != "car" {
		t.Errorf("positional columns not honored: %+v", got[0])
	}
}

func TestFromJSONShapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"string array", `["Always confirm appointments a day ahead", "no"]`, 1},
		{"object array", `[{"content": "Never commit directly to main", "priority": 10}]`, 1},
		{"rule key", `[{"rule": "Avoid scheduling before nine am"}]`, 1},
		{"wrapper object", `{"rules": ["Review the backlog every monday morning"]}`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Rules("json", []byte(tt.input))
			if err != nil {
				t.Fatalf("Rules: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d candidates, want %d: %+v", len(got), tt.want, got)
			}
		})
	}
}

func TestFromJSONExplicitPriorityClamped(t *testing.T) {
	got, err := Rules("json", []byte(`[{"content": "Never commit directly to main", "priority": 42}]`))
	if err != nil {
		t.Fatalf("Rules: %v", err)
	}
	if len(got) != 1 || got[0].Priority != 10 {
		t.Errorf("priority not clamped: %+v", got)
	}
}

func TestFromJSONInvalid(t *testing.T) {
	if _, err := Rules("json", []byte(`{"rules": 12}`)); err == nil {
		t.Error("expected error for malformed json rules")
	}
}

func TestFromHTMLSkipsScriptAndStyle(t *testing.T) {
	input := `<html><head><title>rules</title><style>body { color: red }</style></head>
<body><script>var x = "never show this to anyone";</script>
<ul><li>Always take out the recycling on tuesdays</li></ul></body></html>`

	got, err := Rules("html", []byte(input))
	if err != nil {
		t.Fatalf("Rules: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1: %+v", len(got), got)
	}
	if got[0].Content != "Always take out the recycling on tuesdays" {
		t.Errorf("Content = %q", got[0].Content)
	}
}
