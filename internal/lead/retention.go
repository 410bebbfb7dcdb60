package lead

import "time"

// DefaultRetentionMonths is the calendar retention window applied to every
// write. Enforcement of the expiry is external; this module only stamps it.
const DefaultRetentionMonths = 24

// RetentionExpiry computes the retention timestamp for a write performed at
// now: the same day-of-month `months` calendar months later, clamped to the
// last valid day when that month is shorter. Every write recomputes it, so
// edits refresh the retention clock.
func RetentionExpiry(now time.Time, months int) time.Time {
	year, month, day := now.Date()
	m := int(month) + months
	year += (m - 1) / 12
	month = time.Month((m-1)%12 + 1)

	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day,
		now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), now.Location())
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
