// Package notify pushes booking updates to the user's phone via ntfy.sh.
// Notifications are fire-and-forget: a failed push is logged and never blocks
// or fails the booking flow.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Priorities understood by ntfy.
const (
	PriorityLow     = "2"
	PriorityDefault = "3"
	PriorityHigh    = "5"
)

// Notifier delivers a push notification. Implementations must never return
// an error into the booking flow; delivery problems are their own to log.
type Notifier interface {
	Notify(ctx context.Context, title, body, priority string, tags ...string)
}

// Ntfy publishes to an ntfy.sh topic.
type Ntfy struct {
	client *resty.Client
	topic  string
	log    *slog.Logger
}

func NewNtfy(topic string, log *slog.Logger) *Ntfy {
	client := resty.New().
		SetBaseURL("https://ntfy.sh").
		SetTimeout(10 * time.Second)
	return &Ntfy{client: client, topic: topic, log: log}
}

func (n *Ntfy) Notify(ctx context.Context, title, body, priority string, tags ...string) {
	if n.topic == "" {
		return
	}
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Title", title).
		SetHeader("Priority", priority).
		SetHeader("Tags", strings.Join(tags, ",")).
		SetBody(body).
		Post("/" + n.topic)
	if err != nil {
		n.log.Error("notification failed", "title", title, "err", err)
		return
	}
	if resp.IsError() {
		n.log.Error("notification rejected", "title", title, "status", resp.StatusCode())
		return
	}
	n.log.Info("notification sent", "title", title)
}

// Nop discards notifications. Used when no topic is configured and in tests.
type Nop struct{}

func (Nop) Notify(context.Context, string, string, string, ...string) {}

// Scheduled announces a newly armed schedule.
func Scheduled(ctx context.Context, n Notifier, target, runAt time.Time) {
	n.Notify(ctx, "Booking Scheduled",
		fmt.Sprintf("Will book court for %s\nScript runs: %s",
			target.Format("Mon Jan 2 3:04 PM"), runAt.Format("Mon Jan 2 3:04 PM")),
		PriorityDefault, "calendar", "tennis")
}
