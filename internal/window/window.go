// Package window computes when the booking window for a reservation opens.
//
// The facility releases a slot a fixed number of calendar days before the
// reservation, at the same wall-clock time. All arithmetic happens on
// timezone-qualified instants in the venue's location; calendar-date strings
// are never compared.
package window

import (
	"fmt"
	"regexp"
	"time"

	"github.com/chefshef/courtsched/internal/internaltypes"
)

// DefaultTimezone is the venue's timezone. Reservation input is calendar-local
// to the venue and converted to instants exactly once, here.
const DefaultTimezone = "America/New_York"

var (
	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRe = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// OpensAt returns the instant the booking window for target opens: offsetDays
// calendar days earlier at the same local time. AddDate operates on calendar
// fields, so the result holds across DST transitions and month/year
// boundaries where a fixed-duration subtraction would not.
func OpensAt(target time.Time, offsetDays int) time.Time {
	return target.AddDate(0, 0, -offsetDays)
}

// IsOpen reports whether the booking window that opens at opensAt is open at
// now. Monotonic in now: both operands are true instants.
func IsOpen(now, opensAt time.Time) bool {
	return !now.Before(opensAt)
}

// ParseTarget converts a YYYY-MM-DD date and HH:MM time, calendar-local to
// loc, into an instant. Malformed or past-dated input is rejected with
// ErrInvalidInput before any scheduling side effect.
func ParseTarget(date, clock string, loc *time.Location, now time.Time) (time.Time, error) {
	if !dateRe.MatchString(date) {
		return time.Time{}, fmt.Errorf("%w: date %q (want YYYY-MM-DD)", internaltypes.ErrInvalidInput, date)
	}
	if !timeRe.MatchString(clock) {
		return time.Time{}, fmt.Errorf("%w: time %q (want HH:MM)", internaltypes.ErrInvalidInput, clock)
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %s", internaltypes.ErrInvalidInput, date, clock)
	}
	if !t.After(now) {
		return time.Time{}, fmt.Errorf("%w: %s %s is not in the future", internaltypes.ErrInvalidInput, date, clock)
	}
	return t, nil
}
