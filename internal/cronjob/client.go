// Package cronjob arms deferred triggers at cron-job.org, the external
// service that wakes us up when a far-future booking window opens. The job it
// creates calls our webhook once, around the trigger instant; delivery is
// at-least-once and the webhook gate handles drift and duplicates.
package cronjob

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/chefshef/courtsched/internal/model"
)

const defaultAPIBase = "https://api.cron-job.org"

type Client struct {
	rc *resty.Client

	// callbackBase is this deployment's public base URL; the webhook path and
	// identifying query params are appended per trigger.
	callbackBase  string
	webhookSecret string
	timezone      string
}

func New(apiKey, callbackBase, webhookSecret, timezone string) *Client {
	rc := resty.New().
		SetBaseURL(defaultAPIBase).
		SetAuthToken(apiKey).
		SetTimeout(15 * time.Second).
		SetRetryCount(2)
	return &Client{
		rc:            rc,
		callbackBase:  callbackBase,
		webhookSecret: webhookSecret,
		timezone:      timezone,
	}
}

// SetBaseURL points the client at a different API endpoint. Tests only.
func (c *Client) SetBaseURL(u string) { c.rc.SetBaseURL(u) }

type jobSchedule struct {
	Timezone  string `json:"timezone"`
	Hours     []int  `json:"hours"`
	Minutes   []int  `json:"minutes"`
	MDays     []int  `json:"mdays"`
	Months    []int  `json:"months"`
	WDays     []int  `json:"wdays"`
	ExpiresAt int64  `json:"expiresAt"`
}

type jobSpec struct {
	URL      string      `json:"url"`
	Enabled  bool        `json:"enabled"`
	Title    string      `json:"title"`
	Schedule jobSchedule `json:"schedule"`
}

type createJobRequest struct {
	Job jobSpec `json:"job"`
}

type createJobResponse struct {
	JobID int64 `json:"jobId"`
}

// Arm creates a job that calls the webhook at the trigger instant (in the
// venue's timezone). The job expires shortly after so a stale job cannot
// re-fire the same wall-clock slot a year later.
func (c *Client) Arm(ctx context.Context, tr model.DeferredTrigger) (string, error) {
	fireAt := tr.TriggerAt

	cb, err := c.callbackURL(tr)
	if err != nil {
		return "", err
	}

	// expiresAt format is YYYYMMDDhhmmss local to the job's timezone
	expires := fireAt.Add(time.Hour)
	req := createJobRequest{
		Job: jobSpec{
			URL:     cb,
			Enabled: true,
			Title:   fmt.Sprintf("courtsched %s %s", tr.TargetDate, tr.TargetTime),
			Schedule: jobSchedule{
				Timezone:  c.timezone,
				Hours:     []int{fireAt.Hour()},
				Minutes:   []int{fireAt.Minute()},
				MDays:     []int{fireAt.Day()},
				Months:    []int{int(fireAt.Month())},
				WDays:     []int{-1},
				ExpiresAt: dateStamp(expires),
			},
		},
	}

	var out createJobResponse
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Put("/jobs")
	if err != nil {
		return "", fmt.Errorf("create cron job: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("create cron job: status=%d body=%s", resp.StatusCode(), resp.String())
	}
	if out.JobID == 0 {
		return "", fmt.Errorf("create cron job: no job id in response")
	}
	return fmt.Sprintf("%d", out.JobID), nil
}

// Disarm deletes the job. A job that no longer exists is fine.
func (c *Client) Disarm(ctx context.Context, jobRef string) error {
	resp, err := c.rc.R().
		SetContext(ctx).
		Delete("/jobs/" + jobRef)
	if err != nil {
		return fmt.Errorf("delete cron job %s: %w", jobRef, err)
	}
	if resp.IsError() && resp.StatusCode() != 404 {
		return fmt.Errorf("delete cron job %s: status=%d", jobRef, resp.StatusCode())
	}
	return nil
}

func (c *Client) callbackURL(tr model.DeferredTrigger) (string, error) {
	u, err := url.Parse(c.callbackBase)
	if err != nil {
		return "", fmt.Errorf("callback base url: %w", err)
	}
	u.Path = "/api/webhook"
	q := u.Query()
	q.Set("date", tr.TargetDate)
	q.Set("time", tr.TargetTime)
	q.Set("id", tr.ID)
	if c.webhookSecret != "" {
		q.Set("secret", c.webhookSecret)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func dateStamp(t time.Time) int64 {
	return int64(t.Year())*1e10 +
		int64(t.Month())*1e8 +
		int64(t.Day())*1e6 +
		int64(t.Hour())*1e4 +
		int64(t.Minute())*1e2 +
		int64(t.Second())
}
