package internaltypes

import "errors"

var (
	// ErrInvalidInput marks malformed or past-dated trigger input. Rejected at
	// the boundary before any scheduling side effect.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTooEarlyOrTooLate is the webhook gate rejecting a callback outside
	// the tolerance window. Expected to self-correct on a later delivery.
	ErrTooEarlyOrTooLate = errors.New("trigger outside tolerance window")

	// ErrSchedulerIntegration means the external deferred scheduler could not
	// be armed or disarmed: nothing will fire at the right time unless the
	// caller surfaces this.
	ErrSchedulerIntegration = errors.New("external scheduler integration failed")

	ErrNotFound = errors.New("not found")
)
