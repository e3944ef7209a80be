package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chefshef/courtsched/internal/dispatch"
	"github.com/chefshef/courtsched/internal/internaltypes"
	"github.com/chefshef/courtsched/internal/model"
	"github.com/chefshef/courtsched/internal/notify"
	"github.com/chefshef/courtsched/internal/window"
)

type triggerRequest struct {
	TargetDate string `json:"targetDate"`
	TargetTime string `json:"targetTime"`
}

type triggerResponse struct {
	Accepted bool       `json:"accepted"`
	Mode     string     `json:"mode"`
	RunAt    *time.Time `json:"runAt,omitempty"`
	ID       string     `json:"id,omitempty"`
	Message  string     `json:"message,omitempty"`
}

// handleTrigger is the booking entry point: it validates the target, decides
// how to execute it, and performs exactly one of {attempt now, arm precise
// wait, arm deferred trigger}.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	now := time.Now()
	target, err := window.ParseTarget(req.TargetDate, req.TargetTime, s.Loc, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opensAt := window.OpensAt(target, s.OpenDelayDays)
	d := dispatch.Decide(now, opensAt, s.PreciseHorizon)
	ctx := r.Context()

	switch d.Mode {
	case dispatch.RunNow:
		if err := s.Sched.Set(ctx, now, target); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		notify.Scheduled(ctx, s.Notifier, target, now)
		go func() {
			if err := s.Runner.Run(context.Background()); err != nil {
				s.Log.Error("immediate run failed", "err", err)
			}
		}()
		writeJSON(w, http.StatusOK, triggerResponse{
			Accepted: true,
			Mode:     "immediate",
			RunAt:    &now,
			Message:  "Window already open, booking started",
		})

	case dispatch.ArmPrecise:
		if err := s.Sched.Set(ctx, d.At, target); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.Ticker.ArmPrecise(context.Background(), d.At)
		notify.Scheduled(ctx, s.Notifier, target, d.At)
		writeJSON(w, http.StatusOK, triggerResponse{
			Accepted: true,
			Mode:     "immediate",
			RunAt:    &d.At,
			Message:  "Window opens soon, waiting for the exact instant",
		})

	case dispatch.ArmDeferred:
		tr, err := s.Registry.Create(ctx, req.TargetDate, req.TargetTime, d.At)
		if errors.Is(err, internaltypes.ErrSchedulerIntegration) {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.Sched.Log(ctx, "Deferred booking scheduled for "+req.TargetDate+" "+req.TargetTime, model.LevelInfo)
		notify.Scheduled(ctx, s.Notifier, target, d.At)
		writeJSON(w, http.StatusOK, triggerResponse{
			Accepted: true,
			Mode:     "deferred",
			RunAt:    &d.At,
			ID:       tr.ID,
			Message:  "Will book when the reservation window opens",
		})
	}
}

type runRequest struct {
	TargetDate string `json:"targetDate,omitempty"`
	TargetTime string `json:"targetTime,omitempty"`
}

// handleRun starts a manual booking attempt, optionally (re)setting the
// target first.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // body is optional

	ctx := r.Context()
	now := time.Now()

	if req.TargetDate != "" || req.TargetTime != "" {
		target, err := window.ParseTarget(req.TargetDate, req.TargetTime, s.Loc, now)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.Sched.Set(ctx, now, target); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	snap, err := s.Sched.Snapshot(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !snap.Active() {
		writeError(w, http.StatusBadRequest, "no target reservation time set, schedule one first")
		return
	}

	s.Sched.Log(ctx, "Manual run triggered", model.LevelInfo)
	go func() {
		if err := s.Runner.Run(context.Background()); err != nil {
			s.Log.Error("manual run failed", "err", err)
		}
	}()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Booking attempt started"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Sched.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scheduled":             snap.Active(),
		"scheduledTime":         nullableTime(snap.RunTime),
		"targetReservationTime": nullableTime(snap.TargetTime),
		"lastRun":               snap.LastRun,
		"logs":                  snap.Logs,
		"retryCount":            snap.RetryCount,
		"maxRetries":            snap.MaxRetries,
	})
}

func (s *Server) handleCancelSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.Sched.Cancel(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleListTriggers(w http.ResponseWriter, r *http.Request) {
	pending, err := s.Registry.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if pending == nil {
		pending = []model.DeferredTrigger{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "schedules": pending})
}

func (s *Server) handleCancelTrigger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Registry.Cancel(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Booking cancelled"})
}

// handleWebhook receives the external scheduler's callback and pushes it
// through the gate.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if s.WebhookSecret != "" &&
		subtle.ConstantTimeCompare([]byte(q.Get("secret")), []byte(s.WebhookSecret)) != 1 {
		writeError(w, http.StatusUnauthorized, "bad secret")
		return
	}

	date, clock, id := q.Get("date"), q.Get("time"), q.Get("id")
	if date == "" || clock == "" || id == "" {
		writeError(w, http.StatusBadRequest, "missing date, time or id parameter")
		return
	}

	res, err := s.Gate.Fire(r.Context(), date, clock, id)
	switch {
	case errors.Is(err, internaltypes.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, internaltypes.ErrTooEarlyOrTooLate):
		// not an error to the caller: a later redelivery may be in time
		writeJSON(w, http.StatusOK, map[string]any{
			"success":      false,
			"error":        "not time yet",
			"scheduledFor": res.ScheduledFor,
			"currentTime":  time.Now(),
		})
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	case !res.Fired:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "fired": false, "reason": res.Reason})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "fired": true})
	}
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Sched.Snapshot(r.Context())
	storeOK := err == nil
	writeJSON(w, http.StatusOK, map[string]any{
		"storeBackend": s.StoreBackend,
		"storeOK":      storeOK,
		"scheduled":    storeOK && snap.Active(),
		"authEnabled":  s.Operator.Enabled(),
	})
}

type loginRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.Operator.Enabled() {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "auth disabled"})
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.Operator.Authenticate(req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid password")
		return
	}
	if err := s.Operator.SetSession(w, r); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	if s.Operator.Enabled() {
		s.Operator.ClearSession(w)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
