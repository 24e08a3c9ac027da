package servicerecord

import (
	"time"

	"github.com/clinicaleng/cmms/internal/platform/apperr"
)

// AddMonths adds months calendar months to t. When the day of month does not
// exist in the target month the result is clamped to its last day, so
// Jan 31 + 1 month is Feb 29 in a leap year and Feb 28 otherwise.
func AddMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	hh, mm, ss := t.Clock()
	return time.Date(first.Year(), first.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

// NextOccurrence computes the successor dates for a record executed at
// executed with the given periodicity. ok is false for non-recurring records.
func NextOccurrence(executed time.Time, periodicityMonths int) (scheduled, due time.Time, ok bool) {
	if periodicityMonths <= 0 {
		return time.Time{}, time.Time{}, false
	}
	next := AddMonths(executed, periodicityMonths)
	return next, next, true
}

// ValidatePeriodicity rejects negative and absurd periodicities.
func ValidatePeriodicity(months int) error {
	if months < 0 || months > 120 {
		return apperr.Validation("periodicidade deve estar entre 0 e 120 meses")
	}
	return nil
}
