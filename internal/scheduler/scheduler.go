// Package scheduler drives the periodic due-check and the short-horizon
// precise waits. Both paths funnel into the same runner entry point as the
// webhook, so every trigger source shares one idempotency gate.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/chefshef/courtsched/internal/retry"
)

// TickSpec is the due-check cadence. One minute also sets the effective
// inter-attempt delay for transient-failure retries.
const TickSpec = "* * * * *"

type Scheduler struct {
	runner *retry.Runner
	log    *slog.Logger
	cron   *cron.Cron
}

func New(runner *retry.Runner, log *slog.Logger) *Scheduler {
	return &Scheduler{runner: runner, log: log, cron: cron.New()}
}

// Run ticks every minute until ctx is cancelled, re-evaluating whether the
// active schedule is due. Blocks.
func (s *Scheduler) Run(ctx context.Context) error {
	_, err := s.cron.AddFunc(TickSpec, func() {
		if err := s.runner.RunDue(ctx, time.Now()); err != nil {
			s.log.Error("tick failed", "err", err)
		}
	})
	if err != nil {
		return err
	}

	s.log.Info("scheduler started", "tick", TickSpec)
	s.cron.Start()

	<-ctx.Done()
	stopCtx := s.cron.Stop()
	// let an in-flight tick finish
	<-stopCtx.Done()
	return ctx.Err()
}

// ArmPrecise waits in-process for the exact window-open instant instead of
// leaning on the coarse minute tick. The durable schedule record is the
// source of truth; if the process dies first, the next instance's tick still
// catches the due schedule.
func (s *Scheduler) ArmPrecise(ctx context.Context, at time.Time) {
	d := time.Until(at)
	if d < 0 {
		d = 0
	}
	s.log.Info("armed precise wait", "at", at, "in", d)

	timer := time.NewTimer(d)
	go func() {
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			if err := s.runner.RunDue(ctx, time.Now()); err != nil {
				s.log.Error("precise run failed", "err", err)
			}
		}
	}()
}
