package types

import "time"

// InterestDateLayout is the calendar-date format stored in
// Account.LastInterestDate.
const InterestDateLayout = "2006-01-02"

// CalendarDays returns the number of whole calendar days between the
// stored last-interest date and today, in the given location. An empty
// or malformed date yields 0, which the accrual job treats as
// "initialize without charging".
func CalendarDays(lastDate string, today time.Time, loc *time.Location) int {
	if lastDate == "" {
		return 0
	}

	last, err := time.ParseInLocation(InterestDateLayout, lastDate, loc)
	if err != nil {
		return 0
	}

	t := today.In(loc)
	todayMidnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)

	days := int(todayMidnight.Sub(last).Hours() / 24)
	if days < 0 {
		return 0
	}

	return days
}
