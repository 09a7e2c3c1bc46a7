package market_hours

import "time"

// CalculateEaster calculates the date of Easter for a given year and calendar type
func CalculateEaster(year int, calendarType CalendarType) time.Time {
	if calendarType == Julian {
		return calculateJulianEaster(year)
	}
	return calculateGregorianEaster(year)
}

// calculateGregorianEaster calculates Easter using the Gregorian calendar
// (Western/Catholic), based on the computus method.
func calculateGregorianEaster(year int) time.Time {
	// Golden Number (position in 19-year Metonic cycle)
	a := year % 19

	// Century
	b := year / 100
	c := year % 100

	// Corrections
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451

	// Month and day
	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// calculateJulianEaster calculates Easter using the Julian calendar
// (Orthodox), returned as a Gregorian date.
func calculateJulianEaster(year int) time.Time {
	a := year % 19
	b := year % 4
	c := year % 7

	// d is the epact, e locates the Sunday
	d := (19*a + 15) % 30
	e := (2*b + 4*c + 6*d + 6) % 7

	julianEasterDay := 22 + d + e
	var julianMonth time.Month = 3
	if julianEasterDay > 31 {
		julianEasterDay -= 31
		julianMonth = 4
	}

	julianDate := time.Date(year, julianMonth, julianEasterDay, 0, 0, 0, 0, time.UTC)

	// Julian-to-Gregorian conversion: 13 days for years 1900-2099
	return julianDate.AddDate(0, 0, 13)
}

// findNthWeekday finds the nth occurrence of a weekday in a given month/year
// n: 1 = first, 2 = second, etc.
func findNthWeekday(year, month int, weekday time.Weekday, n int) time.Time {
	date := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)

	daysToAdd := int(weekday - date.Weekday())
	if daysToAdd < 0 {
		daysToAdd += 7
	}
	date = date.AddDate(0, 0, daysToAdd)

	return date.AddDate(0, 0, (n-1)*7)
}

// findLastWeekday finds the last occurrence of a weekday in a given month/year
func findLastWeekday(year, month int, weekday time.Weekday) time.Time {
	// Last day of the month
	date := time.Date(year, time.Month(month+1), 0, 0, 0, 0, 0, time.UTC)

	daysToSubtract := int(date.Weekday() - weekday)
	if daysToSubtract < 0 {
		daysToSubtract += 7
	}
	return date.AddDate(0, 0, -daysToSubtract)
}

// observeOnWeekday moves a date to the nearest weekday if it falls on a weekend
// Saturday -> Friday, Sunday -> Monday
func observeOnWeekday(date time.Time) time.Time {
	switch date.Weekday() {
	case time.Saturday:
		return date.AddDate(0, 0, -1)
	case time.Sunday:
		return date.AddDate(0, 0, 1)
	default:
		return date
	}
}
