package bookbot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chefshef/courtsched/internal/booking"
)

func serve(t *testing.T, status int, body runResponse) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/run", r.URL.Path)
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))

		var req runRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, err := time.Parse(time.RFC3339, req.Target)
		assert.NoError(t, err)

		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAttemptBookingClassification(t *testing.T) {
	target := time.Date(2026, 2, 6, 19, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		resp runResponse
		want booking.Kind
	}{
		{"booked", runResponse{Code: CodeBooked, Court: "Tennis Court 2", Time: "7:00 pm"}, booking.Success},
		{"both courts taken", runResponse{Code: CodeSlotsTaken, Message: "no courts available at 7:00 pm"}, booking.FailureTerminal},
		{"timeout", runResponse{Code: "timeout", Message: "navigation timed out"}, booking.FailureTransient},
		{"page not ready", runResponse{Code: "page_not_ready", Message: "slot table missing"}, booking.FailureTransient},
		{"unknown code", runResponse{Code: "surprise", Message: "??"}, booking.FailureTransient},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := serve(t, http.StatusOK, tc.resp)
			c := New(srv.URL, "sekrit")

			out, err := c.AttemptBooking(context.Background(), target)
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.Kind)
			if tc.want == booking.Success {
				assert.Equal(t, "Tennis Court 2", out.Court)
			}
		})
	}
}

func TestAttemptBookingServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "")
	_, err := c.AttemptBooking(context.Background(), time.Now())
	require.Error(t, err)
}
