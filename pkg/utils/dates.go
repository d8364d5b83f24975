// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

package utils

import "time"

// IsBusinessDay reports whether the given date falls Monday through Friday.
func IsBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// NextBusinessDay returns the first business day strictly after t.
func NextBusinessDay(t time.Time) time.Time {
	next := t.AddDate(0, 0, 1)
	for !IsBusinessDay(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// AddBusinessDays advances t by n business days, skipping weekends. A
// non-positive n returns t unchanged.
func AddBusinessDays(t time.Time, n int) time.Time {
	for i := 0; i < n; i++ {
		t = NextBusinessDay(t)
	}
	return t
}

// StartOfDay truncates t to midnight in the given location.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// At returns the given date at hour:minute in the date's location.
func At(date time.Time, hour, minute int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location())
}
