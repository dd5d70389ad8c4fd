package calendar

import "time"

// The holiday table only covers these years. Dates outside the range are
// treated as ordinary days.
const (
	HolidayTableFirstYear = 2024
	HolidayTableLastYear  = 2030
)

// holidays maps a civil date to the holiday name. Filled once at init and
// read-only afterwards.
var holidays = buildHolidayTable(HolidayTableFirstYear, HolidayTableLastYear)

func buildHolidayTable(firstYear, lastYear int) map[time.Time]string {
	table := make(map[time.Time]string)
	for y := firstYear; y <= lastYear; y++ {
		table[Date(y, time.January, 1)] = "New Year's Day"
		table[nthWeekday(y, time.January, time.Monday, 3)] = "Martin Luther King Jr. Day"
		table[nthWeekday(y, time.February, time.Monday, 3)] = "Presidents' Day"
		table[lastWeekday(y, time.May, time.Monday)] = "Memorial Day"
		table[Date(y, time.June, 19)] = "Juneteenth"
		table[Date(y, time.July, 4)] = "Independence Day"
		table[nthWeekday(y, time.September, time.Monday, 1)] = "Labor Day"
		table[nthWeekday(y, time.October, time.Monday, 2)] = "Columbus Day"
		table[Date(y, time.November, 11)] = "Veterans Day"
		table[nthWeekday(y, time.November, time.Thursday, 4)] = "Thanksgiving Day"
		table[Date(y, time.December, 25)] = "Christmas Day"
	}
	return table
}

// nthWeekday returns the n-th (1-based) given weekday of a month.
func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	first := Date(year, month, 1)
	offset := (int(wd) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+7*(n-1))
}

func lastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	last := Date(year, month+1, 1).AddDate(0, 0, -1)
	offset := (int(last.Weekday()) - int(wd) + 7) % 7
	return last.AddDate(0, 0, -offset)
}

// HolidayName returns the name of the holiday on d, if any.
func HolidayName(d time.Time) (string, bool) {
	name, ok := holidays[Day(d)]
	return name, ok
}

// HolidayTableCovers reports whether year lies inside the precomputed table.
func HolidayTableCovers(year int) bool {
	return year >= HolidayTableFirstYear && year <= HolidayTableLastYear
}
