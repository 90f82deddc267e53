// Package timeout decides when a waiting workflow needs an operator reminder.
package timeout

import "time"

// Day is the reminder unit.
const Day = 24 * time.Hour

// Default thresholds.
const (
	FirstReminderAfter = 7 * Day
	DailyReminderAfter = 14 * Day
)

// Verdict is the reminder due at a tick.
type Verdict int

const (
	None Verdict = iota
	FirstReminder
	DailyReminder
)

func (v Verdict) String() string {
	switch v {
	case FirstReminder:
		return "first_reminder"
	case DailyReminder:
		return "daily_reminder"
	default:
		return "none"
	}
}

// Tracker holds the reminder thresholds and the location used to compare
// calendar days.
type Tracker struct {
	First    time.Duration
	Daily    time.Duration
	Location *time.Location
}

// Default returns the 7 day / 14 day tracker in local time.
func Default() Tracker {
	return Tracker{
		First:    FirstReminderAfter,
		Daily:    DailyReminderAfter,
		Location: time.Local,
	}
}

// Classify returns the reminder due at now for a wait that began at
// waitingSince, given when the last reminder was sent (nil if never).
//
// The first reminder fires once when the wait reaches First. Between First
// and Daily nothing further fires. From Daily on, at most one reminder fires
// per calendar day.
func (t Tracker) Classify(now, waitingSince time.Time, lastReminder *time.Time) Verdict {
	elapsed := now.Sub(waitingSince)

	switch {
	case elapsed < t.First:
		return None
	case elapsed < t.Daily:
		if lastReminder == nil || lastReminder.Before(waitingSince) {
			return FirstReminder
		}
		return None
	default:
		if lastReminder != nil && !lastReminder.Before(waitingSince) && t.sameDay(*lastReminder, now) {
			return None
		}
		return DailyReminder
	}
}

// Classify applies the default tracker.
func Classify(now, waitingSince time.Time, lastReminder *time.Time) Verdict {
	return Default().Classify(now, waitingSince, lastReminder)
}

func (t Tracker) sameDay(a, b time.Time) bool {
	loc := t.Location
	if loc == nil {
		loc = time.Local
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
