// Package retry drives booking attempts against the active schedule. One
// attempt runs at a time; its outcome is durably recorded before the next one
// may start. Retry delay is not an in-process sleep: a transient failure
// leaves the schedule due, and the next tick or webhook delivery re-enters
// here.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chefshef/courtsched/internal/booking"
	"github.com/chefshef/courtsched/internal/notify"
	"github.com/chefshef/courtsched/internal/schedule"
)

type Runner struct {
	mu        sync.Mutex
	attempter booking.Attempter
	sched     *schedule.Manager
	notifier  notify.Notifier
	log       *slog.Logger
}

func NewRunner(attempter booking.Attempter, sched *schedule.Manager, notifier notify.Notifier, log *slog.Logger) *Runner {
	return &Runner{attempter: attempter, sched: sched, notifier: notifier, log: log}
}

// RunDue makes one attempt if the active schedule's run time has been
// reached. This is the shared entry point for the periodic tick and the
// webhook path, so both go through the same serialization.
func (r *Runner) RunDue(ctx context.Context, now time.Time) error {
	snap, err := r.sched.Snapshot(ctx)
	if err != nil {
		return err
	}
	if !snap.Active() || now.Before(snap.RunTime) {
		return nil
	}
	return r.Run(ctx)
}

// Run makes exactly one booking attempt for the active schedule. If an
// attempt is already in flight the call is dropped — the in-flight attempt's
// outcome will decide what happens next. The schedule is re-read under the
// lock immediately before attempting, so a cancellation that raced an
// in-flight trigger wins.
func (r *Runner) Run(ctx context.Context) error {
	if !r.mu.TryLock() {
		r.log.Info("booking attempt already in flight, skipping")
		return nil
	}
	defer r.mu.Unlock()

	snap, err := r.sched.Snapshot(ctx)
	if err != nil {
		return err
	}
	if !snap.Active() {
		r.log.Info("no active schedule, nothing to attempt")
		return nil
	}

	r.sched.Log(ctx, fmt.Sprintf("Starting booking attempt for %s", snap.TargetTime.Format(time.RFC1123)), "info")

	out, err := r.attempter.AttemptBooking(ctx, snap.TargetTime)
	if err != nil {
		// collaborator unreachable: transient by definition
		out = booking.Outcome{Kind: booking.FailureTransient, Reason: err.Error()}
	}

	res, err := r.sched.RecordOutcome(ctx, out)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}

	switch {
	case out.Kind == booking.Success:
		r.notifier.Notify(ctx, "Tennis Court Booked!",
			fmt.Sprintf("Successfully booked %s at %s", out.Court, out.Time),
			notify.PriorityHigh, "white_check_mark", "tennis")
	case res.Retrying:
		r.notifier.Notify(ctx, fmt.Sprintf("Retry %d/%d", res.Attempt, res.Max),
			fmt.Sprintf("%s - will try again next tick", out.Reason),
			notify.PriorityDefault, "hourglass")
	default:
		r.notifier.Notify(ctx, "Booking Failed", res.Message,
			notify.PriorityHigh, "x", "warning")
	}
	return nil
}
