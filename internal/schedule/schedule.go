// Package schedule owns the singleton schedule record. Every mutation is
// serialized here and round-trips through the durable store as one atomic
// read-modify-write, so a concurrent process instance always sees the latest
// decision.
package schedule

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/chefshef/courtsched/internal/booking"
	"github.com/chefshef/courtsched/internal/model"
	"github.com/chefshef/courtsched/internal/store"
)

type Manager struct {
	mu    sync.Mutex
	store store.Store
	log   *slog.Logger
	now   func() time.Time
}

func NewManager(st store.Store, log *slog.Logger) *Manager {
	return &Manager{store: st, log: log, now: time.Now}
}

// SetClock overrides the time source. Tests only.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// Set replaces any existing schedule: new run/target times, retry count back
// to zero. Setting over an active schedule is cancel semantics, not a queue.
func (m *Manager) Set(ctx context.Context, runTime, targetTime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mutate(ctx, func(rec *model.ScheduleRecord) {
		rec.RunTime = runTime
		rec.TargetTime = targetTime
		rec.RetryCount = 0
		m.append(rec, "Scheduled: run at "+runTime.Format(time.RFC1123)+" to book "+targetTime.Format(time.RFC1123), model.LevelInfo)
	})
}

// Cancel clears the schedule. Cancelling an empty schedule is a no-op, not an
// error.
func (m *Manager) Cancel(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mutate(ctx, func(rec *model.ScheduleRecord) {
		if !rec.Active() {
			return
		}
		reset(rec)
		m.append(rec, "Cancelled scheduled run", model.LevelInfo)
	})
}

// Outcome is what RecordOutcome decided about the schedule's future.
type Outcome struct {
	// Retrying is true when the schedule stays armed for the next tick.
	Retrying bool
	// Attempt is the retry count after this attempt.
	Attempt int
	Max     int
	Message string
}

// RecordOutcome applies a booking attempt's result to the schedule. Success
// and terminal failure clear the schedule; a transient failure inside the
// retry budget increments the count and leaves the run time due, so the next
// tick re-attempts. A transient failure that exhausts the budget becomes
// terminal.
func (m *Manager) RecordOutcome(ctx context.Context, out booking.Outcome) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res Outcome
	err := m.mutate(ctx, func(rec *model.ScheduleRecord) {
		msg := out.Message()
		res.Max = rec.MaxRetries
		res.Attempt = rec.RetryCount

		if out.Kind == booking.FailureTransient && rec.RetryCount < rec.MaxRetries {
			rec.RetryCount++
			res.Attempt = rec.RetryCount
			res.Retrying = true
			res.Message = msg
			rec.LastRun = &model.LastRun{Time: m.now(), Success: false, Message: msg}
			m.append(rec, msg, model.LevelError)
			return
		}

		if out.Kind == booking.FailureTransient {
			msg = "Giving up after " + strconv.Itoa(rec.RetryCount) + " retries: " + out.Reason
		}
		success := out.Kind == booking.Success
		rec.LastRun = &model.LastRun{Time: m.now(), Success: success, Message: msg}
		reset(rec)
		res.Message = msg
		level := model.LevelError
		if success {
			level = model.LevelSuccess
		}
		m.append(rec, msg, level)
	})
	return res, err
}

// Log appends a free-form entry to the activity log.
func (m *Manager) Log(ctx context.Context, message, level string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.mutate(ctx, func(rec *model.ScheduleRecord) {
		m.append(rec, message, level)
	})
	if err != nil {
		m.log.Error("failed to persist log entry", "err", err, "message", message)
	}
}

// Snapshot returns a read-only copy of the current schedule. Callers never
// receive an alias of stored state.
func (m *Manager) Snapshot(ctx context.Context) (model.ScheduleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.LoadSchedule(ctx)
}

func (m *Manager) mutate(ctx context.Context, fn func(*model.ScheduleRecord)) error {
	rec, err := m.store.LoadSchedule(ctx)
	if err != nil {
		return err
	}
	fn(&rec)
	return m.store.SaveSchedule(ctx, rec)
}

func (m *Manager) append(rec *model.ScheduleRecord, message, level string) {
	m.log.Info(message, "level", level)
	rec.Logs = append(rec.Logs, model.LogEntry{Time: m.now(), Message: message, Level: level})
	if n := len(rec.Logs); n > model.MaxLogs {
		rec.Logs = rec.Logs[n-model.MaxLogs:]
	}
}

func reset(rec *model.ScheduleRecord) {
	rec.RunTime = time.Time{}
	rec.TargetTime = time.Time{}
	rec.RetryCount = 0
}

