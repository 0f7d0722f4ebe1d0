package intent

import (
	"strconv"
	"strings"
	"time"
)

// ParseDueDate extracts a concrete due time from free text. Patterns are
// tried in order:
//
//	today/tonight/this evening      -> 18:00 today
//	tomorrow/next day               -> now+24h
//	at/by/before <clock time>       -> that time today, rolled to tomorrow if past
//	in N hours                      -> now+N hours
//
// The boolean is false when no pattern matches; unparseable text is never an
// error, the caller's default offsets apply instead.
func ParseDueDate(text string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(text)

	if containsAny(lower, sameDayWords) {
		y, m, d := now.Date()
		return time.Date(y, m, d, 18, 0, 0, 0, now.Location()), true
	}

	if strings.Contains(lower, "tomorrow") || strings.Contains(lower, "next day") {
		return now.Add(24 * time.Hour), true
	}

	if m := atTimeRE.FindStringSubmatch(lower); m != nil {
		if due, ok := clockToday(m, now); ok {
			return due, true
		}
	}

	if m := inHoursRE.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			return now.Add(time.Duration(n) * time.Hour), true
		}
	}

	return time.Time{}, false
}

// clockToday resolves a matched "at/by/before HH[:MM][am|pm]" reference to
// today, rolling to tomorrow when the moment has already passed.
func clockToday(m []string, now time.Time) (time.Time, bool) {
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour > 23 {
		return time.Time{}, false
	}

	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return time.Time{}, false
		}
	}

	switch m[3] {
	case "pm":
		if hour > 12 {
			return time.Time{}, false
		}
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour > 12 {
			return time.Time{}, false
		}
		if hour == 12 {
			hour = 0
		}
	}

	y, mo, d := now.Date()
	due := time.Date(y, mo, d, hour, minute, 0, 0, now.Location())
	if !due.After(now) {
		due = due.Add(24 * time.Hour)
	}
	return due, true
}
