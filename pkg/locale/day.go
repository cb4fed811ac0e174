package locale

import "time"

// CalendarDay truncates t to midnight UTC. Tour dates are stored as UTC
// calendar days, so all "today" comparisons go through here.
func CalendarDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
