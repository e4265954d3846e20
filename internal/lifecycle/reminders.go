package lifecycle

import "time"

// ReminderThresholds are the day counts at which a reminder fires.
var ReminderThresholds = []int{14, 7, 3, 1}

// EvaluateReminder decides whether a reminder is due for r at now. It reads
// only; notifiedToday is the caller's record of a reminder already sent to
// this tenant on the current calendar day.
func EvaluateReminder(r Record, now time.Time, notifiedToday bool) (Intent, bool) {
	if notifiedToday {
		return Intent{}, false
	}

	var reason Reason
	switch r.Status {
	case StatusTrialing:
		reason = ReasonTrialEnding
	case StatusActive:
		reason = ReasonRenewalDue
	default:
		return Intent{}, false
	}

	ref := r.ReferenceExpiry()
	if ref == nil || !now.Before(*ref) {
		return Intent{}, false
	}
	days := DaysUntil(*ref, now)
	for _, t := range ReminderThresholds {
		if days == int64(t) {
			in := newIntent(r, reason, now)
			in.ThresholdDays = t
			return in, true
		}
	}
	return Intent{}, false
}

// CalendarDay returns the YYYY-MM-DD key of now in loc, used to scope the
// once-per-day reminder guard.
func CalendarDay(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(time.DateOnly)
}
