// Package web is the HTTP surface: the trigger/cancel/status API the
// dashboard calls, and the webhook the external scheduler calls back.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v2"

	"github.com/chefshef/courtsched/internal/auth"
	"github.com/chefshef/courtsched/internal/notify"
	"github.com/chefshef/courtsched/internal/retry"
	"github.com/chefshef/courtsched/internal/schedule"
	"github.com/chefshef/courtsched/internal/scheduler"
	"github.com/chefshef/courtsched/internal/trigger"
	"github.com/chefshef/courtsched/internal/webhook"
)

type Server struct {
	Sched    *schedule.Manager
	Registry *trigger.Registry
	Runner   *retry.Runner
	Ticker   *scheduler.Scheduler
	Gate     *webhook.Gate
	Notifier notify.Notifier
	Operator *auth.Operator
	Log      *slog.Logger

	Loc            *time.Location
	OpenDelayDays  int
	PreciseHorizon time.Duration
	WebhookSecret  string
	StoreBackend   string

	LogJSON bool
}

func (s *Server) Routes() http.Handler {
	requestLogger := httplog.NewLogger("http", httplog.Options{
		LogLevel: slog.LevelInfo,
		JSON:     s.LogJSON,
		Concise:  true,
	})

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httplog.RequestLogger(requestLogger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	// the external scheduler may use either method
	r.Get("/api/webhook", s.handleWebhook)
	r.Post("/api/webhook", s.handleWebhook)

	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.Operator.Require)
		r.Post("/api/trigger", s.handleTrigger)
		r.Post("/api/run", s.handleRun)
		r.Get("/api/status", s.handleStatus)
		r.Delete("/api/schedule", s.handleCancelSchedule)
		r.Get("/api/schedules", s.handleListTriggers)
		r.Delete("/api/schedules/{id}", s.handleCancelTrigger)
		r.Get("/api/debug", s.handleDebug)
	})

	return r
}

// Start serves until ctx is cancelled, then drains with a short grace period.
func Start(ctx context.Context, addr string, h http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
