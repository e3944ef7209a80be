// Package bookbot is the client for the browser-automation service that logs
// in to the facility site and clicks through the reservation flow. The
// service reports a machine-readable result code so outcome classification
// never depends on matching human-readable messages.
package bookbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chefshef/courtsched/internal/booking"
)

// Result codes reported by the automation service.
const (
	CodeBooked     = "booked"
	CodeSlotsTaken = "slots_taken"
)

type Client struct {
	hc      *http.Client
	baseURL string
	token   string
}

func New(baseURL, token string) *Client {
	return &Client{
		// the automation run takes tens of seconds: login, navigation, slot
		// click, confirmation
		hc:      &http.Client{Timeout: 90 * time.Second},
		baseURL: baseURL,
		token:   token,
	}
}

type runRequest struct {
	Target string `json:"target"`
}

type runResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Court   string `json:"court,omitempty"`
	Time    string `json:"time,omitempty"`
}

// AttemptBooking makes exactly one automation run for the target reservation.
// A transport failure or a 5xx comes back as an error (the runner classifies
// it transient); an in-protocol result is classified here.
func (c *Client) AttemptBooking(ctx context.Context, target time.Time) (booking.Outcome, error) {
	body, err := json.Marshal(runRequest{Target: target.Format(time.RFC3339)})
	if err != nil {
		return booking.Outcome{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run", bytes.NewReader(body))
	if err != nil {
		return booking.Outcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return booking.Outcome{}, fmt.Errorf("bookbot request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return booking.Outcome{}, fmt.Errorf("bookbot response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return booking.Outcome{}, fmt.Errorf("bookbot unavailable (status=%d)", resp.StatusCode)
	}

	var rr runResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return booking.Outcome{}, fmt.Errorf("bookbot response decode (status=%d): %w", resp.StatusCode, err)
	}

	return classify(rr), nil
}

func classify(rr runResponse) booking.Outcome {
	switch rr.Code {
	case CodeBooked:
		return booking.Outcome{Kind: booking.Success, Court: rr.Court, Time: rr.Time}
	case CodeSlotsTaken:
		// both courts gone: retrying cannot help
		return booking.Outcome{Kind: booking.FailureTerminal, Reason: rr.Message}
	default:
		// timeouts, page-not-ready, login hiccups: worth another try
		return booking.Outcome{Kind: booking.FailureTransient, Reason: rr.Message}
	}
}
