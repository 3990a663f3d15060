// Package schedule computes premium due dates from a policy anchor date
// and payment mode.
package schedule

import (
	"fmt"
	"time"

	"policy-monitor/internal/common/errors"
	"policy-monitor/internal/models"
)

// DateLayout is the canonical textual date form used across the service.
const DateLayout = "2006-01-02"

// NextDueDate advances the anchor by one payment period. An unrecognized
// mode is a hard validation error: silently returning the same date would
// freeze the schedule. Pure function; result depends only on inputs.
func NextDueDate(anchor time.Time, mode models.PaymentMode) (time.Time, error) {
	switch mode {
	case models.ModeMonthly:
		return addMonthsClamped(anchor, 1), nil
	case models.ModeQuarterly:
		return addMonthsClamped(anchor, 3), nil
	case models.ModeSemiAnnual:
		return addMonthsClamped(anchor, 6), nil
	case models.ModeAnnual:
		return addMonthsClamped(anchor, 12), nil
	default:
		return time.Time{}, errors.NewValidationError(
			"Unrecognized payment mode",
			fmt.Sprintf("mode: %q", mode),
		)
	}
}

// NextDueDateString parses a YYYY-MM-DD anchor, advances it, and renders
// the result in the same canonical form. A missing or unparseable anchor
// is a validation error rather than a substitute of the current time, so
// a bad form value can never silently anchor a schedule to today.
func NextDueDateString(anchor string, mode models.PaymentMode) (string, error) {
	if anchor == "" {
		return "", errors.NewValidationError("Policy date is required", "empty anchor date")
	}
	t, err := time.Parse(DateLayout, anchor)
	if err != nil {
		return "", errors.NewValidationError(
			"Policy date is not a valid calendar date",
			fmt.Sprintf("anchor: %q", anchor),
		)
	}
	next, err := NextDueDate(t, mode)
	if err != nil {
		return "", err
	}
	return next.Format(DateLayout), nil
}

// addMonthsClamped adds whole months with day-of-month clamping: Jan 31
// plus one month lands on the last day of February, not March 2. Go's
// AddDate normalizes overflow forward, which is not the calendar
// convention the schedule needs.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	m := int(month) + months
	year += (m - 1) / 12
	month = time.Month((m-1)%12 + 1)

	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func lastDayOfMonth(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
