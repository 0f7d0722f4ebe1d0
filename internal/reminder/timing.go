package reminder

import (
	"time"

	"ruleminder/internal/task"
)

// minLead is the floor applied when a computed reminder time has already
// passed: the reminder is pushed to now+minLead instead.
const minLead = 5 * time.Minute

// ComputeReminderTime returns when a reminder should fire for a task due at
// due with the given stated priority. It is a pure function of
// (now, due, priority) so it can be tested without a live timer.
//
// A zero due time means the task has no due date and defaults to now+24h.
// A due date within 24h escalates the effective priority to high regardless
// of the stated priority. The result is always strictly after now.
func ComputeReminderTime(now time.Time, due time.Time, priority task.Priority) time.Time {
	if due.IsZero() {
		due = now.Add(24 * time.Hour)
	}

	timeToDue := due.Sub(now)

	effective := priority
	if timeToDue <= 24*time.Hour {
		effective = task.PriorityHigh
	}

	var offset time.Duration
	switch effective {
	case task.PriorityHigh:
		switch {
		case timeToDue <= 2*time.Hour:
			offset = maxDuration(timeToDue/4, 15*time.Minute)
		case timeToDue <= 8*time.Hour:
			offset = time.Hour
		default:
			offset = 2 * time.Hour
		}
	case task.PriorityMedium:
		if timeToDue <= 4*time.Hour {
			offset = maxDuration(timeToDue/4, time.Hour)
		} else {
			offset = 4 * time.Hour
		}
	default: // low or unknown
		if timeToDue <= 24*time.Hour {
			offset = maxDuration(timeToDue/2, 4*time.Hour)
		} else {
			offset = 24 * time.Hour
		}
	}

	reminderTime := due.Add(-offset)
	if !reminderTime.After(now) {
		reminderTime = now.Add(minLead)
	}
	return reminderTime
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
