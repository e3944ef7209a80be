package store

import (
	"context"
	"sync"

	"github.com/chefshef/courtsched/internal/internaltypes"
	"github.com/chefshef/courtsched/internal/model"
)

// Memory is an in-process Store for tests and local development. Not durable
// across restarts, so deployments should prefer the Redis or Postgres
// backends.
type Memory struct {
	mu       sync.Mutex
	schedule model.ScheduleRecord
	hasSched bool
	triggers map[string]model.DeferredTrigger
}

func NewMemory() *Memory {
	return &Memory{triggers: make(map[string]model.DeferredTrigger)}
}

func (m *Memory) LoadSchedule(_ context.Context) (model.ScheduleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasSched {
		return emptySchedule(), nil
	}
	return copySchedule(m.schedule), nil
}

func (m *Memory) SaveSchedule(_ context.Context, rec model.ScheduleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedule = copySchedule(rec)
	m.hasSched = true
	return nil
}

func (m *Memory) SaveTrigger(_ context.Context, tr model.DeferredTrigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers[tr.ID] = tr
	return nil
}

func (m *Memory) GetTrigger(_ context.Context, id string) (model.DeferredTrigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tr, ok := m.triggers[id]
	if !ok {
		return model.DeferredTrigger{}, internaltypes.ErrNotFound
	}
	return tr, nil
}

func (m *Memory) DeleteTrigger(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.triggers, id)
	return nil
}

func (m *Memory) ListTriggers(_ context.Context) ([]model.DeferredTrigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.DeferredTrigger, 0, len(m.triggers))
	for _, tr := range m.triggers {
		if !tr.Fired {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (m *Memory) MarkTriggerFired(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tr, ok := m.triggers[id]
	if !ok || tr.Fired {
		return false, nil
	}
	tr.Fired = true
	m.triggers[id] = tr
	return true, nil
}

func (m *Memory) Close() error { return nil }

// copySchedule clones the record so callers never hold a mutable alias of
// stored state.
func copySchedule(rec model.ScheduleRecord) model.ScheduleRecord {
	out := rec
	if rec.LastRun != nil {
		lr := *rec.LastRun
		out.LastRun = &lr
	}
	if rec.Logs != nil {
		out.Logs = make([]model.LogEntry, len(rec.Logs))
		copy(out.Logs, rec.Logs)
	}
	return out
}
