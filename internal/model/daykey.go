package model

import (
	"fmt"
	"time"
)

const dayKeyLayout = "2006-01-02"

// DayKey identifies a calendar date ("YYYY-MM-DD") in the user's local
// timezone. It is not an instant.
type DayKey string

// DayKeyOf returns the calendar date of t in t's own location.
func DayKeyOf(t time.Time) DayKey {
	return DayKey(t.Format(dayKeyLayout))
}

func ParseDayKey(s string) (DayKey, error) {
	if _, err := time.Parse(dayKeyLayout, s); err != nil {
		return "", fmt.Errorf("invalid day key %q: %w", s, err)
	}
	return DayKey(s), nil
}

func (d DayKey) Valid() bool {
	_, err := time.Parse(dayKeyLayout, string(d))
	return err == nil
}

func (d DayKey) String() string { return string(d) }

// civil maps the date onto UTC midnight so differences are whole days
// regardless of DST transitions in the local zone.
func (d DayKey) civil() (time.Time, bool) {
	t, err := time.Parse(dayKeyLayout, string(d))
	return t, err == nil
}

// AddDays returns the date n calendar days away. An invalid key is returned
// unchanged.
func (d DayKey) AddDays(n int) DayKey {
	t, ok := d.civil()
	if !ok {
		return d
	}
	return DayKey(t.AddDate(0, 0, n).Format(dayKeyLayout))
}

// DaysBetween returns the number of calendar days from a to b (b - a).
func DaysBetween(a, b DayKey) (int, error) {
	ta, ok := a.civil()
	if !ok {
		return 0, fmt.Errorf("invalid day key %q", a)
	}
	tb, ok := b.civil()
	if !ok {
		return 0, fmt.Errorf("invalid day key %q", b)
	}
	return int(tb.Sub(ta) / (24 * time.Hour)), nil
}

// Time returns local midnight of the date in loc.
func (d DayKey) Time(loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dayKeyLayout, string(d), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day key %q: %w", d, err)
	}
	return t, nil
}

// StartOfDay truncates t to midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04",
	dayKeyLayout,
}

// ParseDate parses a stored deadline or due date. Date-only values resolve to
// midnight in loc; values with an explicit offset keep it.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}
