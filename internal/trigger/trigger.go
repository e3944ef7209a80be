// Package trigger keeps the durable records behind far-future bookings. The
// process cannot be trusted to stay alive until the window opens, so each
// record is mirrored as a job at an external scheduling service that calls
// our webhook back at the right instant.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chefshef/courtsched/internal/internaltypes"
	"github.com/chefshef/courtsched/internal/model"
	"github.com/chefshef/courtsched/internal/store"
)

// ExternalScheduler is the cron-as-a-service collaborator. Delivery of the
// callback is at-least-once, with clock drift up to the webhook gate's
// tolerance.
type ExternalScheduler interface {
	// Arm registers a callback at fireAt carrying the trigger's identity and
	// returns the service-side job id.
	Arm(ctx context.Context, tr model.DeferredTrigger) (jobRef string, err error)
	// Disarm cancels a previously armed job. Unknown refs are a no-op.
	Disarm(ctx context.Context, jobRef string) error
}

type Registry struct {
	store store.Store
	ext   ExternalScheduler
	log   *slog.Logger
}

func NewRegistry(st store.Store, ext ExternalScheduler, log *slog.Logger) *Registry {
	return &Registry{store: st, ext: ext, log: log}
}

// Create persists a deferred trigger and arms the external scheduler. It
// returns as soon as the record is durable; it never blocks until the
// callback fires. An arm failure is surfaced as ErrSchedulerIntegration —
// silently keeping a record nothing will ever fire would be worse than
// failing the request.
func (r *Registry) Create(ctx context.Context, targetDate, targetTime string, triggerAt time.Time) (model.DeferredTrigger, error) {
	tr := model.DeferredTrigger{
		ID:         uuid.NewString(),
		TargetDate: targetDate,
		TargetTime: targetTime,
		TriggerAt:  triggerAt,
		CreatedAt:  time.Now(),
	}
	if err := r.store.SaveTrigger(ctx, tr); err != nil {
		return model.DeferredTrigger{}, fmt.Errorf("persist trigger: %w", err)
	}

	jobRef, err := r.ext.Arm(ctx, tr)
	if err != nil {
		// roll back the record; a trigger without an external job is dead
		_ = r.store.DeleteTrigger(ctx, tr.ID)
		return model.DeferredTrigger{}, fmt.Errorf("%w: %v", internaltypes.ErrSchedulerIntegration, err)
	}

	tr.ExternalJobRef = jobRef
	if err := r.store.SaveTrigger(ctx, tr); err != nil {
		return model.DeferredTrigger{}, fmt.Errorf("persist job ref: %w", err)
	}
	return tr, nil
}

// Get returns the trigger record, fired or not.
func (r *Registry) Get(ctx context.Context, id string) (model.DeferredTrigger, error) {
	return r.store.GetTrigger(ctx, id)
}

// List returns the pending (non-fired) triggers from durable state.
func (r *Registry) List(ctx context.Context) ([]model.DeferredTrigger, error) {
	return r.store.ListTriggers(ctx)
}

// MarkFired flips the trigger to fired, returning true only for the call
// that did the flipping. The external scheduler delivers at-least-once;
// this is the guard that makes duplicate delivery harmless.
func (r *Registry) MarkFired(ctx context.Context, id string) (bool, error) {
	return r.store.MarkTriggerFired(ctx, id)
}

// Cancel removes the record and best-effort disarms the external job.
// Cancelling an unknown or already-fired trigger is a no-op.
func (r *Registry) Cancel(ctx context.Context, id string) error {
	tr, err := r.store.GetTrigger(ctx, id)
	if errors.Is(err, internaltypes.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if tr.ExternalJobRef != "" {
		if err := r.ext.Disarm(ctx, tr.ExternalJobRef); err != nil {
			r.log.Error("failed to disarm external job", "id", id, "jobRef", tr.ExternalJobRef, "err", err)
		}
	}
	return r.store.DeleteTrigger(ctx, id)
}

// Disarm cancels just the external job for a fired trigger, keeping the
// record (and its fired flag) for dedup.
func (r *Registry) Disarm(ctx context.Context, tr model.DeferredTrigger) {
	if tr.ExternalJobRef == "" {
		return
	}
	if err := r.ext.Disarm(ctx, tr.ExternalJobRef); err != nil {
		r.log.Error("failed to disarm external job", "id", tr.ID, "jobRef", tr.ExternalJobRef, "err", err)
	}
}
