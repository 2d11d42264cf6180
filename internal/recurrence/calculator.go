// Package recurrence computes recurring-transaction due dates and
// materializes due occurrences into ledger transactions.
//
// Date arithmetic convention: adding calendar months (monthly, quarterly,
// annually) clamps to the end of the target month rather than overflowing
// into the next one, so a series anchored on Jan 31 lands on Feb 28 (or 29),
// Mar 31, Apr 30 and so on.
package recurrence

import (
	"time"

	"finance-ledger-service/internal/models"
)

// NextDueDate computes the date of the next occurrence after from for the
// given frequency. Unrecognized frequencies fall back to monthly; callers
// that care should check Frequency.IsValid first (the processor logs a
// warning when it hits the fallback).
func NextDueDate(frequency models.Frequency, from time.Time) time.Time {
	from = models.DateOnly(from)

	switch frequency {
	case models.FrequencyDaily:
		return from.AddDate(0, 0, 1)
	case models.FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case models.FrequencyBiweekly:
		return from.AddDate(0, 0, 14)
	case models.FrequencyMonthly:
		return addMonths(from, 1)
	case models.FrequencyQuarterly:
		return addMonths(from, 3)
	case models.FrequencyAnnually:
		return addMonths(from, 12)
	default:
		return addMonths(from, 1)
	}
}

// addMonths adds n calendar months, clamping the day to the last day of the
// target month. time.AddDate is unsuitable here: it normalizes Jan 31 + 1
// month to Mar 2/3 instead of Feb 28/29.
func addMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()

	// First of the target month, then clamp the day.
	first := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := daysInMonth(first.Year(), first.Month())
	if day > last {
		day = last
	}

	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// daysInMonth returns the number of days in the given month
func daysInMonth(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
