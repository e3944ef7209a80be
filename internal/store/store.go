// Package store is the durable persistence boundary. Every schedule and
// trigger mutation round-trips through a Store implementation, because the
// process that arms a far-future schedule is not guaranteed to be the one
// that later executes it.
package store

import (
	"context"
	"fmt"

	"github.com/chefshef/courtsched/internal/internaltypes"
	"github.com/chefshef/courtsched/internal/model"
)

// Store persists the singleton schedule record and the deferred triggers.
// Semantics are last-writer-wins; callers serialize their own read-modify-
// write cycles.
type Store interface {
	// LoadSchedule returns the current schedule record. A store with no
	// record yet returns an empty record with default retry budget, not an
	// error.
	LoadSchedule(ctx context.Context) (model.ScheduleRecord, error)
	SaveSchedule(ctx context.Context, rec model.ScheduleRecord) error

	SaveTrigger(ctx context.Context, tr model.DeferredTrigger) error
	GetTrigger(ctx context.Context, id string) (model.DeferredTrigger, error)
	DeleteTrigger(ctx context.Context, id string) error
	// ListTriggers returns the current non-fired triggers from durable state,
	// not a cached snapshot.
	ListTriggers(ctx context.Context) ([]model.DeferredTrigger, error)
	// MarkTriggerFired atomically flips the trigger's fired flag and reports
	// whether this call was the one that flipped it. False for unknown ids
	// and for already-fired triggers.
	MarkTriggerFired(ctx context.Context, id string) (bool, error)

	Close() error
}

// DefaultMaxRetries is the retry budget a fresh schedule record starts with.
const DefaultMaxRetries = 10

func emptySchedule() model.ScheduleRecord {
	return model.ScheduleRecord{MaxRetries: DefaultMaxRetries}
}

// WrapNotFound maps backend-specific missing-row errors onto ErrNotFound so
// callers never match on driver error strings.
func WrapNotFound(err error) error {
	if err == nil {
		return nil
	}
	if err.Error() == "no rows in result set" || err.Error() == "redis: nil" {
		return internaltypes.ErrNotFound
	}
	return fmt.Errorf("store: %w", err)
}
