package intent

import (
	"testing"
	"time"
)

func TestParseDueDate(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		text string
		want time.Time
		ok   bool
	}{
		{
			name: "today resolves to six pm",
			text: "finish the report today",
			want: time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "tonight resolves to six pm",
			text: "call mom tonight",
			want: time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "tomorrow is plus one day",
			text: "submit the form tomorrow",
			want: now.Add(24 * time.Hour),
			ok:   true,
		},
		{
			name: "by five pm",
			text: "send the invoice by 5pm",
			want: time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "at clock time with minutes",
			text: "dentist at 14:30",
			want: time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "past clock time rolls to tomorrow",
			text: "gym at 7am",
			want: time.Date(2025, 3, 11, 7, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "in n hours",
			text: "pick up the package in 3 hours",
			want: now.Add(3 * time.Hour),
			ok:   true,
		},
		{
			name: "no time reference",
			text: "buy groceries sometime",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDueDate(tt.text, now)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("due = %v, want %v", got, tt.want)
			}
		})
	}
}
