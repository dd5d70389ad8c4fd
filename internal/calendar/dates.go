package calendar

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the civil date format used in config files, the store and the CLI.
const DateLayout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// Day truncates t to its civil date at 00:00 UTC.
// The wall-clock date of t is kept regardless of its location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a civil date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b (negative if b is before a).
func DaysBetween(a, b time.Time) int {
	// time.Duration overflows past ~292 years, so count in Unix seconds
	return int((Day(b).Unix() - Day(a).Unix()) / secondsPerDay)
}

// AddDays shifts t by n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}

// SameDay reports whether a and b fall on the same civil date.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

// Parse reads a YYYY-MM-DD date.
func Parse(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %q", s)
	}
	return t, nil
}

// Format renders t as YYYY-MM-DD. The zero time renders as an empty string.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return Day(t).Format(DateLayout)
}
