// Package timeutil holds the pure calendar math behind weekly progress and
// report scheduling. Everything here converts user-local wall-clock moments
// to absolute instants; nothing touches storage or wall-clock now().
package timeutil

import (
	"time"
	_ "time/tzdata" // keep zone lookups working in scratch containers
)

// LoadLocation resolves an IANA zone name, falling back to fallback (and
// finally UTC) when the name is empty or unknown.
func LoadLocation(name, fallback string) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if fallback != "" {
		if loc, err := time.LoadLocation(fallback); err == nil {
			return loc
		}
	}
	return time.UTC
}

// WeekStart returns midnight Monday of the ISO week containing now, in loc.
func WeekStart(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	daysSinceMonday := (int(local.Weekday()) + 6) % 7
	y, m, d := local.AddDate(0, 0, -daysSinceMonday).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// WeekKey is the canonical YYYY-MM-DD key of now's user-local week.
func WeekKey(now time.Time, loc *time.Location) string {
	return WeekStart(now, loc).Format("2006-01-02")
}

// WeekBounds returns the local week's [start, end) as UTC instants, suitable
// for range queries over UTC-stored rows.
func WeekBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	start := WeekStart(now, loc)
	return start.UTC(), start.AddDate(0, 0, 7).UTC()
}

// NextWeekStart returns the following Monday 00:00 local as a UTC instant,
// the default weekly-report trigger.
func NextWeekStart(now time.Time, loc *time.Location) time.Time {
	return WeekStart(now, loc).AddDate(0, 0, 7).UTC()
}

// At pins a calendar day (its Y/M/D) to hh:mm in loc and returns the
// absolute instant.
func At(day time.Time, hour, min int, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, min, 0, 0, loc)
}

// HasReachedLocalMoment reports whether now has crossed hh:mm of the given
// calendar day in loc. The boundary itself counts as reached.
func HasReachedLocalMoment(now time.Time, day time.Time, hour, min int, loc *time.Location) bool {
	return !now.Before(At(day, hour, min, loc))
}

// DayStart returns local midnight of now's day in loc. Used for per-day
// idempotency stamps.
func DayStart(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
