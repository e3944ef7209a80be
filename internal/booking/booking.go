// Package booking defines the contract with the browser-automation
// collaborator that actually clicks through the reservation site.
package booking

import (
	"context"
	"fmt"
	"time"
)

// Kind classifies a booking attempt's result.
type Kind int

const (
	// Success: the slot was booked.
	Success Kind = iota
	// FailureTerminal: retrying cannot succeed (both courts already taken).
	FailureTerminal
	// FailureTransient: may succeed if retried (timeout, page not ready,
	// network error).
	FailureTransient
)

// Outcome is the classified result of exactly one booking attempt.
type Outcome struct {
	Kind   Kind
	Reason string

	// Court and Time are set on success.
	Court string
	Time  string
}

// Message renders the outcome for the schedule log and lastRun record. It is
// the channel a human acts on, so it carries the classification and the
// court/time when there is one.
func (o Outcome) Message() string {
	switch o.Kind {
	case Success:
		return fmt.Sprintf("Booked %s at %s", o.Court, o.Time)
	case FailureTerminal:
		return fmt.Sprintf("Booking failed: %s", o.Reason)
	default:
		return fmt.Sprintf("Attempt failed: %s", o.Reason)
	}
}

// Attempter makes one booking attempt for the given reservation instant. The
// call blocks for the duration of the attempt (seconds to tens of seconds);
// timeouts are the collaborator's responsibility and come back as a transient
// failure, never as a hang. A non-nil error means the collaborator could not
// be reached at all and is treated as transient by callers.
type Attempter interface {
	AttemptBooking(ctx context.Context, target time.Time) (Outcome, error)
}
