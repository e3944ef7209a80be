// Package webhook gates callbacks from the external scheduler. The service
// delivers at-least-once with imprecise timing, so the gate checks the
// delivery against the intended instant and makes duplicate deliveries
// harmless before any booking attempt starts.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chefshef/courtsched/internal/internaltypes"
	"github.com/chefshef/courtsched/internal/retry"
	"github.com/chefshef/courtsched/internal/schedule"
	"github.com/chefshef/courtsched/internal/trigger"
	"github.com/chefshef/courtsched/internal/window"
)

// DefaultTolerance absorbs the external scheduler's clock drift.
const DefaultTolerance = 10 * time.Minute

type Gate struct {
	registry  *trigger.Registry
	sched     *schedule.Manager
	runner    *retry.Runner
	loc       *time.Location
	openDays  int
	tolerance time.Duration
	log       *slog.Logger
	now       func() time.Time
}

func NewGate(registry *trigger.Registry, sched *schedule.Manager, runner *retry.Runner, loc *time.Location, openDays int, tolerance time.Duration, log *slog.Logger) *Gate {
	return &Gate{
		registry:  registry,
		sched:     sched,
		runner:    runner,
		loc:       loc,
		openDays:  openDays,
		tolerance: tolerance,
		log:       log,
		now:       time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (g *Gate) SetClock(now func() time.Time) { g.now = now }

// Result reports what the gate did with a delivery.
type Result struct {
	// Fired is true when this delivery was the one that started the booking.
	Fired bool
	// Reason explains a non-fired result (duplicate, cancelled trigger).
	Reason string
	// ScheduledFor is the instant the delivery was supposed to arrive at.
	ScheduledFor time.Time
}

// Fire validates and executes an external trigger delivery.
//
// A delivery outside the tolerance window is rejected with no side effect;
// the scheduler's own retry of the callback can still succeed later. Inside
// tolerance, the trigger's fired flag is the idempotency boundary: only the
// first delivery proceeds to a booking attempt, and a trigger cancelled while
// the callback was in flight fires nothing.
func (g *Gate) Fire(ctx context.Context, targetDate, targetTime, triggerID string) (Result, error) {
	now := g.now()
	target, err := window.ParseTarget(targetDate, targetTime, g.loc, now)
	if err != nil {
		return Result{}, err
	}

	opensAt := window.OpensAt(target, g.openDays)
	drift := now.Sub(opensAt)
	if drift < 0 {
		drift = -drift
	}
	if drift > g.tolerance {
		g.log.Warn("trigger delivery outside tolerance",
			"scheduledFor", opensAt, "now", now, "drift", drift)
		return Result{ScheduledFor: opensAt},
			fmt.Errorf("%w: scheduled for %s, delivered at %s",
				internaltypes.ErrTooEarlyOrTooLate, opensAt.Format(time.RFC3339), now.Format(time.RFC3339))
	}

	tr, err := g.registry.Get(ctx, triggerID)
	if errors.Is(err, internaltypes.ErrNotFound) {
		// cancelled (or never ours): nothing to do
		g.log.Info("trigger delivery for unknown id, ignoring", "id", triggerID)
		return Result{Reason: "trigger not found (cancelled?)", ScheduledFor: opensAt}, nil
	}
	if err != nil {
		return Result{}, err
	}

	first, err := g.registry.MarkFired(ctx, triggerID)
	if err != nil {
		return Result{}, err
	}
	if !first {
		g.log.Info("duplicate trigger delivery, ignoring", "id", triggerID)
		return Result{Reason: "already fired", ScheduledFor: opensAt}, nil
	}

	// consumed: the external job must not re-fire next year
	g.registry.Disarm(ctx, tr)

	g.sched.Log(ctx, fmt.Sprintf("Deferred trigger fired for %s %s", targetDate, targetTime), "info")
	if err := g.sched.Set(ctx, now, target); err != nil {
		return Result{}, fmt.Errorf("arm schedule: %w", err)
	}
	if err := g.runner.Run(ctx); err != nil {
		return Result{}, err
	}
	return Result{Fired: true, ScheduledFor: opensAt}, nil
}
