package core

// validation.go checks staged rows before they reach the ledger.
//
// Dates are the only field validated at commit time. The normalizer passes
// unrecognized dates through unchanged, so a row can carry anything up to this
// point. A date is accepted when it is exactly four digits, dash, two digits,
// dash, two digits with month 1..12 and day 1..31. In strict calendar mode the
// day must also exist in that month (2024-02-30 is rejected, 2024-02-29 is not).

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// isoDatePattern is the strict 4-2-2 digit shape required at commit time.
var isoDatePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)

// ValidateDate returns nil if s is an acceptable ledger date.
func ValidateDate(s string, strictCalendar bool) error {
	m := isoDatePattern.FindStringSubmatch(s)
	if m == nil {
		return fmt.Errorf("%w: %q does not match YYYY-MM-DD", ErrInvalidDate, s)
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])

	if month < 1 || month > 12 {
		return fmt.Errorf("%w: %q has month %d", ErrInvalidDate, s, month)
	}
	if day < 1 || day > 31 {
		return fmt.Errorf("%w: %q has day %d", ErrInvalidDate, s, day)
	}

	if strictCalendar && day > daysInMonth(year, time.Month(month)) {
		return fmt.Errorf("%w: %q, %s %d has %d days", ErrInvalidDate, s, time.Month(month), year, daysInMonth(year, time.Month(month)))
	}
	return nil
}

// daysInMonth uses time normalization: day 0 of the next month is the last
// day of this one.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// validateLinkedDates checks the date of every linked row and returns a
// *DateError for the first failure.
func validateLinkedDates(rows []StagedTransaction, indices []int, strictCalendar bool) error {
	for i, row := range rows {
		if err := ValidateDate(row.Date, strictCalendar); err != nil {
			return &DateError{Index: indices[i], Value: row.Date}
		}
	}
	return nil
}
