// Package model holds the records shared between the durable store and the
// scheduling components.
package model

import "time"

// Log levels carried on activity log entries.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelError   = "error"
)

// MaxLogs bounds the schedule activity log; oldest entries are evicted first.
const MaxLogs = 100

// LogEntry is one line of the schedule activity log.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
	Level   string    `json:"level"`
}

// LastRun records the outcome of the most recent booking attempt.
type LastRun struct {
	Time    time.Time `json:"time"`
	Success bool      `json:"success"`
	Message string    `json:"message"`
}

// ScheduleRecord is the single active schedule. Zero RunTime/TargetTime means
// no schedule is armed.
type ScheduleRecord struct {
	// RunTime is when the booking attempt should start (booking window open).
	RunTime time.Time `json:"runTime"`
	// TargetTime is the court reservation the user actually wants.
	TargetTime time.Time `json:"targetTime"`

	RetryCount int `json:"retryCount"`
	MaxRetries int `json:"maxRetries"`

	LastRun *LastRun   `json:"lastRun,omitempty"`
	Logs    []LogEntry `json:"logs"`
}

// Active reports whether a schedule is currently armed.
func (r ScheduleRecord) Active() bool {
	return !r.RunTime.IsZero() && !r.TargetTime.IsZero()
}

// DeferredTrigger is a durable record instructing an external scheduler to
// call back at TriggerAt. Fired flips false->true exactly once.
type DeferredTrigger struct {
	ID string `json:"id"`

	// TargetDate/TargetTime identify the desired reservation in the venue's
	// calendar (YYYY-MM-DD and HH:MM).
	TargetDate string `json:"targetDate"`
	TargetTime string `json:"targetTime"`

	TriggerAt time.Time `json:"triggerAt"`

	// ExternalJobRef is the job id at the external scheduling service, kept
	// for cancellation. Empty if arming was never confirmed.
	ExternalJobRef string `json:"externalJobRef,omitempty"`

	Fired     bool      `json:"fired"`
	CreatedAt time.Time `json:"createdAt"`
}
