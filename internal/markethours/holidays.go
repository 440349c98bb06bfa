package markethours

import "time"

type day struct {
	month time.Month
	day   int
}

// NYSE full-day closures for 2026.
var nyseHolidays2026 = []day{
	{time.January, 1},   // New Year's Day
	{time.January, 19},  // Martin Luther King Jr. Day
	{time.February, 16}, // Washington's Birthday
	{time.April, 3},     // Good Friday
	{time.May, 25},      // Memorial Day
	{time.June, 19},     // Juneteenth
	{time.July, 3},      // Independence Day (observed)
	{time.September, 7}, // Labor Day
	{time.November, 26}, // Thanksgiving Day
	{time.December, 25}, // Christmas Day
}

// NYSE 13:00 early closes for 2026.
var nyseEarlyCloses2026 = []day{
	{time.November, 27}, // day after Thanksgiving
	{time.December, 24}, // Christmas Eve
}

var (
	holidaySet    = dateSet(2026, nyseHolidays2026)
	earlyCloseSet = dateSet(2026, nyseEarlyCloses2026)
)

func dateSet(year int, days []day) map[string]bool {
	set := make(map[string]bool, len(days))
	for _, d := range days {
		set[dateKey(time.Date(year, d.month, d.day, 12, 0, 0, 0, NewYork))] = true
	}
	return set
}

// IsHoliday returns true if the New York date of t is an exchange holiday.
func IsHoliday(t time.Time) bool {
	return holidaySet[dateKey(t)]
}

// IsEarlyClose returns true if the New York date of t closes at 13:00.
func IsEarlyClose(t time.Time) bool {
	return earlyCloseSet[dateKey(t)]
}

func dateKey(t time.Time) string {
	return t.In(NewYork).Format("2006-01-02")
}
