package webhook

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chefshef/courtsched/internal/booking"
	"github.com/chefshef/courtsched/internal/internaltypes"
	"github.com/chefshef/courtsched/internal/model"
	"github.com/chefshef/courtsched/internal/notify"
	"github.com/chefshef/courtsched/internal/retry"
	"github.com/chefshef/courtsched/internal/schedule"
	"github.com/chefshef/courtsched/internal/store"
	"github.com/chefshef/courtsched/internal/trigger"
)

type countingAttempter struct {
	calls atomic.Int64
}

func (c *countingAttempter) AttemptBooking(context.Context, time.Time) (booking.Outcome, error) {
	c.calls.Add(1)
	return booking.Outcome{Kind: booking.Success, Court: "Tennis Court 2", Time: "7:00 pm"}, nil
}

type nopScheduler struct{}

func (nopScheduler) Arm(_ context.Context, tr model.DeferredTrigger) (string, error) {
	return "job-1", nil
}
func (nopScheduler) Disarm(context.Context, string) error { return nil }

type fixture struct {
	gate      *Gate
	registry  *trigger.Registry
	sched     *schedule.Manager
	attempter *countingAttempter
	loc       *time.Location
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewMemory()
	sched := schedule.NewManager(st, discard)
	registry := trigger.NewRegistry(st, nopScheduler{}, discard)
	att := &countingAttempter{}
	runner := retry.NewRunner(att, sched, notify.Nop{}, discard)

	g := NewGate(registry, sched, runner, loc, 7, DefaultTolerance, discard)
	g.SetClock(func() time.Time { return now })
	return &fixture{gate: g, registry: registry, sched: sched, attempter: att, loc: loc}
}

// target 2026-02-06 19:00 EST opens 2026-01-30 19:00 EST
const (
	targetDate = "2026-02-06"
	targetTime = "19:00"
)

func opensAt(t *testing.T, loc *time.Location) time.Time {
	t.Helper()
	return time.Date(2026, 1, 30, 19, 0, 0, 0, loc)
}

func TestFireWithinTolerance(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")
	now := opensAt(t, loc).Add(9 * time.Minute)
	f := newFixture(t, now)

	tr, err := f.registry.Create(context.Background(), targetDate, targetTime, opensAt(t, loc))
	require.NoError(t, err)

	res, err := f.gate.Fire(context.Background(), targetDate, targetTime, tr.ID)
	require.NoError(t, err)
	assert.True(t, res.Fired)
	assert.EqualValues(t, 1, f.attempter.calls.Load())
}

func TestFireOutsideTolerance(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")

	for _, drift := range []time.Duration{11 * time.Minute, -11 * time.Minute} {
		now := opensAt(t, loc).Add(drift)
		f := newFixture(t, now)

		tr, err := f.registry.Create(context.Background(), targetDate, targetTime, opensAt(t, loc))
		require.NoError(t, err)

		_, err = f.gate.Fire(context.Background(), targetDate, targetTime, tr.ID)
		require.ErrorIs(t, err, internaltypes.ErrTooEarlyOrTooLate)
		assert.Zero(t, f.attempter.calls.Load())

		// no side effect: the same delivery succeeds when retried in time
		f.gate.SetClock(func() time.Time { return opensAt(t, loc).Add(time.Minute) })
		res, err := f.gate.Fire(context.Background(), targetDate, targetTime, tr.ID)
		require.NoError(t, err)
		assert.True(t, res.Fired)
	}
}

func TestDuplicateDeliveryFiresOnce(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")
	now := opensAt(t, loc).Add(time.Minute)
	f := newFixture(t, now)

	tr, err := f.registry.Create(context.Background(), targetDate, targetTime, opensAt(t, loc))
	require.NoError(t, err)

	res1, err := f.gate.Fire(context.Background(), targetDate, targetTime, tr.ID)
	require.NoError(t, err)
	res2, err := f.gate.Fire(context.Background(), targetDate, targetTime, tr.ID)
	require.NoError(t, err)

	assert.True(t, res1.Fired)
	assert.False(t, res2.Fired)
	assert.Equal(t, "already fired", res2.Reason)
	assert.EqualValues(t, 1, f.attempter.calls.Load(), "at most one attempt per trigger")
}

func TestCancelledTriggerNeverFires(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")
	now := opensAt(t, loc).Add(time.Minute)
	f := newFixture(t, now)

	ctx := context.Background()
	tr, err := f.registry.Create(ctx, targetDate, targetTime, opensAt(t, loc))
	require.NoError(t, err)

	// user cancels, then the already-in-flight callback arrives
	require.NoError(t, f.registry.Cancel(ctx, tr.ID))

	res, err := f.gate.Fire(ctx, targetDate, targetTime, tr.ID)
	require.NoError(t, err)
	assert.False(t, res.Fired)
	assert.Zero(t, f.attempter.calls.Load(), "cancelled schedule must not book")
}

func TestFireRejectsMalformedInput(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")
	f := newFixture(t, opensAt(t, loc))

	_, err := f.gate.Fire(context.Background(), "06-02-2026", "19:00", "some-id")
	require.ErrorIs(t, err, internaltypes.ErrInvalidInput)
}
