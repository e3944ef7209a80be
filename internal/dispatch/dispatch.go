// Package dispatch selects how a booking request should be executed given how
// far away its booking window is.
package dispatch

import "time"

// DefaultPreciseHorizon is the longest lead time the in-process path is
// trusted to wait out. Anything further goes to the external scheduler, which
// is the only thing guaranteed to outlive the process.
const DefaultPreciseHorizon = time.Hour

// Mode is the chosen execution path for a booking request.
type Mode int

const (
	// RunNow: the window is already open, attempt immediately.
	RunNow Mode = iota
	// ArmPrecise: the window opens soon; wait in process for the exact
	// instant instead of relying on coarse polling.
	ArmPrecise
	// ArmDeferred: the window opens beyond the precise horizon; register a
	// durable trigger with the external scheduler.
	ArmDeferred
)

func (m Mode) String() string {
	switch m {
	case RunNow:
		return "run-now"
	case ArmPrecise:
		return "arm-precise"
	case ArmDeferred:
		return "arm-deferred"
	default:
		return "unknown"
	}
}

// Decision is the selected mode plus the instant to act at. At is now for
// RunNow, the window-open instant otherwise.
type Decision struct {
	Mode Mode
	At   time.Time
}

// Decide picks the execution path. The run-now boundary is inclusive: a
// window opening exactly now runs now, so ambiguity never resolves toward
// silently missing the window. A lead time of exactly the horizon goes to the
// external scheduler, which tolerates the slack; the in-process wait is
// reserved for strictly shorter leads.
func Decide(now, opensAt time.Time, preciseHorizon time.Duration) Decision {
	if !opensAt.After(now) {
		return Decision{Mode: RunNow, At: now}
	}
	if opensAt.Sub(now) < preciseHorizon {
		return Decision{Mode: ArmPrecise, At: opensAt}
	}
	return Decision{Mode: ArmDeferred, At: opensAt}
}
