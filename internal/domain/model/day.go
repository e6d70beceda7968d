package model

import (
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

// Day is a calendar day in canonical YYYY-MM-DD form. The zero value means "no day".
// Days are only comparable when produced through the same Calendar.
type Day string

// IsZero reports whether d carries no day.
func (d Day) IsZero() bool { return d == "" }

// Valid reports whether d is a well-formed canonical day.
func (d Day) Valid() bool {
	t, err := time.Parse(dayLayout, string(d))
	return err == nil && t.Format(dayLayout) == string(d)
}

// AddDays returns the day n days after d (n may be negative).
// An invalid day stays invalid.
func (d Day) AddDays(n int) Day {
	t, err := time.Parse(dayLayout, string(d))
	if err != nil {
		return d
	}
	return Day(t.AddDate(0, 0, n).Format(dayLayout))
}

// Prev returns the day before d.
func (d Day) Prev() Day { return d.AddDays(-1) }

func (d Day) String() string { return string(d) }

// Calendar turns instants into Days under one fixed timezone.
// The zero Calendar uses UTC.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a Calendar for loc; nil means UTC.
func NewCalendar(loc *time.Location) Calendar {
	return Calendar{loc: loc}
}

// UTC is the default calendar.
func UTC() Calendar { return Calendar{} }

// Location returns the calendar's timezone.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// DayOf returns the calendar day containing t. A zero time has no day.
func (c Calendar) DayOf(t time.Time) Day {
	if t.IsZero() {
		return ""
	}
	return Day(t.In(c.Location()).Format(dayLayout))
}

// ParseDay normalizes a stored date. It accepts a canonical day, a day
// with a trailing time part, or an RFC 3339 timestamp (converted through
// the calendar). Anything else yields the zero Day.
func (c Calendar) ParseDay(s string) Day {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if d := Day(s); d.Valid() {
		return d
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return c.DayOf(t)
		}
	}
	if len(s) > len(dayLayout) {
		if d := Day(s[:len(dayLayout)]); d.Valid() {
			return d
		}
	}
	return ""
}
