// Package calendar provides working-day arithmetic over civil dates.
//
// A day is a working day unless it is excluded as a weekend, a public
// holiday from the built-in table, or one of the caller's custom holidays.
// All functions are pure; Settings is passed by value on every call.
package calendar

import "time"

// maxWalkDays bounds AddWorkingDays and CalculateEndDate when the settings
// exclude every day of the week.
const maxWalkDays = 366 * 20

// Settings controls which days count as working days.
type Settings struct {
	ExcludeWeekends bool
	ExcludeHolidays bool
	CustomHolidays  []time.Time
}

// DefaultSettings excludes weekends and public holidays.
func DefaultSettings() Settings {
	return Settings{ExcludeWeekends: true, ExcludeHolidays: true}
}

// IsWorkingDay reports whether date is a working day under s.
func IsWorkingDay(date time.Time, s Settings) bool {
	d := Day(date)

	if s.ExcludeWeekends {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return false
		}
	}

	if s.ExcludeHolidays {
		if _, ok := holidays[d]; ok {
			return false
		}
	}

	for _, h := range s.CustomHolidays {
		if SameDay(h, d) {
			return false
		}
	}

	return true
}

// CalculateWorkingDays counts working days in the inclusive range [start, end].
// Returns 0 if start is after end.
func CalculateWorkingDays(start, end time.Time, s Settings) int {
	start, end = Day(start), Day(end)
	if start.After(end) {
		return 0
	}

	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if IsWorkingDay(d, s) {
			count++
		}
	}
	return count
}

// AddWorkingDays walks from start one calendar day at a time, forward for
// n > 0 and backward for n < 0, until |n| working days have been crossed.
// start itself is never counted. n == 0 returns start unchanged.
func AddWorkingDays(start time.Time, n int, s Settings) time.Time {
	d := Day(start)
	if n == 0 {
		return d
	}

	step := 1
	remaining := n
	if n < 0 {
		step = -1
		remaining = -n
	}

	for walked := 0; remaining > 0 && walked < maxWalkDays; walked++ {
		d = d.AddDate(0, 0, step)
		if IsWorkingDay(d, s) {
			remaining--
		}
	}
	return d
}

// NextWorkingDay returns d if it is a working day, otherwise the first working day after it.
func NextWorkingDay(d time.Time, s Settings) time.Time {
	d = Day(d)
	for walked := 0; !IsWorkingDay(d, s) && walked < maxWalkDays; walked++ {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// CalculateEndDate returns the last day of a span of duration working days
// beginning at start. A working start counts as day 1; otherwise counting
// begins at the next working day. duration <= 0 returns start.
func CalculateEndDate(start time.Time, duration int, s Settings) time.Time {
	if duration <= 0 {
		return Day(start)
	}
	first := NextWorkingDay(start, s)
	return AddWorkingDays(first, duration-1, s)
}
