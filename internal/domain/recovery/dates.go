package recovery

import "time"

// DateOnly truncates a timestamp to its calendar date in UTC.
// All engine arithmetic works on whole calendar days; truncating at the
// input boundary keeps day counts independent of wall-clock time zones.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b
// (inclusive-exclusive). Negative when b precedes a.
func DaysBetween(a, b time.Time) int {
	return int(DateOnly(b).Sub(DateOnly(a)).Hours() / 24)
}

// AddDays returns the date d whole days after t
func AddDays(t time.Time, d int) time.Time {
	return DateOnly(t).AddDate(0, 0, d)
}
