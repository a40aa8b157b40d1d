package model

import "time"

// DateLayout is the calendar date format used for day partitioning.
const DateLayout = "2006-01-02"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns T.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// CalendarDate renders t as a calendar date in loc. A nil loc means UTC.
func CalendarDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

// DateRange returns the calendar dates from `to` going back `days` days,
// ordered oldest first. days < 1 yields an empty slice.
func DateRange(to time.Time, days int, loc *time.Location) []string {
	if days < 1 {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	end := to.In(loc)
	out := make([]string, days)
	for i := 0; i < days; i++ {
		out[days-1-i] = end.AddDate(0, 0, -i).Format(DateLayout)
	}
	return out
}
