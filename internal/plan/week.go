package plan

import "time"

// Week is the Monday 00:00:00 to Sunday 23:59:59 span a plan covers.
type Week struct {
	Start time.Time
	End   time.Time
}

// WeekOf returns the week containing now, in loc. Uses time.Date rather than
// Truncate(24h) so midnight is local midnight, not UTC midnight, and AddDate
// to safely handle month/year boundaries.
func WeekOf(now time.Time, loc *time.Location) Week {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	weekday := int(local.Weekday()) // 0=Sun
	if weekday == 0 {
		weekday = 7 // treat Sunday as day 7 so Mon=1..Sun=7
	}
	start := time.Date(local.Year(), local.Month(), local.Day()-(weekday-1), 0, 0, 0, 0, loc)
	return Week{
		Start: start,
		End:   start.AddDate(0, 0, 7).Add(-time.Second),
	}
}

// Contains reports whether t falls within the week.
func (w Week) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}
