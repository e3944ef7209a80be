package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chefshef/courtsched/internal/auth"
	"github.com/chefshef/courtsched/internal/booking"
	"github.com/chefshef/courtsched/internal/model"
	"github.com/chefshef/courtsched/internal/notify"
	"github.com/chefshef/courtsched/internal/retry"
	"github.com/chefshef/courtsched/internal/schedule"
	"github.com/chefshef/courtsched/internal/scheduler"
	"github.com/chefshef/courtsched/internal/store"
	"github.com/chefshef/courtsched/internal/trigger"
	"github.com/chefshef/courtsched/internal/webhook"
)

type stubAttempter struct{}

func (stubAttempter) AttemptBooking(context.Context, time.Time) (booking.Outcome, error) {
	return booking.Outcome{Kind: booking.Success, Court: "Tennis Court 1", Time: "7:00 pm"}, nil
}

type stubExternal struct{ armErr error }

func (s stubExternal) Arm(context.Context, model.DeferredTrigger) (string, error) {
	if s.armErr != nil {
		return "", s.armErr
	}
	return "job-7", nil
}
func (stubExternal) Disarm(context.Context, string) error { return nil }

func newServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewMemory()
	sched := schedule.NewManager(st, discard)
	registry := trigger.NewRegistry(st, stubExternal{}, discard)
	runner := retry.NewRunner(stubAttempter{}, sched, notify.Nop{}, discard)
	tick := scheduler.New(runner, discard)

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	gate := webhook.NewGate(registry, sched, runner, loc, 7, webhook.DefaultTolerance, discard)

	srv := &Server{
		Sched:          sched,
		Registry:       registry,
		Runner:         runner,
		Ticker:         tick,
		Gate:           gate,
		Notifier:       notify.Nop{},
		Operator:       auth.NewOperator("", nil, nil),
		Log:            discard,
		Loc:            loc,
		OpenDelayDays:  7,
		PreciseHorizon: time.Hour,
		WebhookSecret:  "hush",
		StoreBackend:   "memory",
	}
	return srv, st
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rdr *strings.Reader
	if body == "" {
		rdr = strings.NewReader("")
	} else {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func TestTriggerDeferredPath(t *testing.T) {
	srv, _ := newServer(t)
	h := srv.Routes()

	// far enough in the future that the window opens past the horizon
	date := time.Now().AddDate(0, 0, 30).Format("2006-01-02")
	rec, out := doJSON(t, h, http.MethodPost, "/api/trigger",
		fmt.Sprintf(`{"targetDate":%q,"targetTime":"19:00"}`, date))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, out["accepted"])
	assert.Equal(t, "deferred", out["mode"])
	assert.NotEmpty(t, out["id"])
	assert.NotEmpty(t, out["runAt"])

	// the trigger shows up as pending
	rec, out = doJSON(t, h, http.MethodGet, "/api/schedules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	schedules := out["schedules"].([]any)
	require.Len(t, schedules, 1)
}

func TestTriggerImmediatePath(t *testing.T) {
	srv, _ := newServer(t)
	h := srv.Routes()

	// tomorrow: window opened six days ago
	date := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	rec, out := doJSON(t, h, http.MethodPost, "/api/trigger",
		fmt.Sprintf(`{"targetDate":%q,"targetTime":"23:59"}`, date))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, out["accepted"])
	assert.Equal(t, "immediate", out["mode"])
	assert.Empty(t, out["id"])
}

func TestTriggerRejectsBadInput(t *testing.T) {
	srv, _ := newServer(t)
	h := srv.Routes()

	rec, out := doJSON(t, h, http.MethodPost, "/api/trigger", `{"targetDate":"tomorrow","targetTime":"19:00"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, out["success"])

	// no state change
	rec, out = doJSON(t, h, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["scheduled"])
}

func TestCancelTriggerIsIdempotent(t *testing.T) {
	srv, _ := newServer(t)
	h := srv.Routes()

	date := time.Now().AddDate(0, 0, 30).Format("2006-01-02")
	_, out := doJSON(t, h, http.MethodPost, "/api/trigger",
		fmt.Sprintf(`{"targetDate":%q,"targetTime":"19:00"}`, date))
	id := out["id"].(string)

	rec, _ := doJSON(t, h, http.MethodDelete, "/api/schedules/"+id, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = doJSON(t, h, http.MethodDelete, "/api/schedules/"+id, "")
	assert.Equal(t, http.StatusOK, rec.Code, "cancelling twice is fine")

	_, out = doJSON(t, h, http.MethodGet, "/api/schedules", "")
	assert.Empty(t, out["schedules"])
}

func TestWebhookRequiresSecret(t *testing.T) {
	srv, _ := newServer(t)
	h := srv.Routes()

	rec, _ := doJSON(t, h, http.MethodGet, "/api/webhook?date=2026-02-06&time=19:00&id=x&secret=wrong", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = doJSON(t, h, http.MethodGet, "/api/webhook?time=19:00&id=x&secret=hush", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing date parameter")
}

func TestStatusReflectsSchedule(t *testing.T) {
	srv, _ := newServer(t)
	h := srv.Routes()

	ctx := context.Background()
	run := time.Now().Add(time.Hour)
	require.NoError(t, srv.Sched.Set(ctx, run, run.AddDate(0, 0, 7)))

	rec, out := doJSON(t, h, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["scheduled"])
	assert.NotEmpty(t, out["scheduledTime"])
	assert.EqualValues(t, 0, out["retryCount"])
	assert.EqualValues(t, store.DefaultMaxRetries, out["maxRetries"])

	rec, _ = doJSON(t, h, http.MethodDelete, "/api/schedule", "")
	require.Equal(t, http.StatusOK, rec.Code)

	_, out = doJSON(t, h, http.MethodGet, "/api/status", "")
	assert.Equal(t, false, out["scheduled"])
}
