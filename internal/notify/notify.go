// Package notify publishes run-completion events so downstream consumers
// can react to freshly loaded data.
package notify

import (
	"context"
	"time"
)

// RunCompleted describes one finished scrape-and-load run.
type RunCompleted struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Countries  int       `json:"countries"`
	Indicators int       `json:"indicators"`
	Values     int       `json:"values"`
	Checksum   string    `json:"checksum"`
}

// Publisher delivers run-completion events.
type Publisher interface {
	RunCompleted(ctx context.Context, event RunCompleted) error
}

// NoOpPublisher drops every event. It is the default when no notification
// transport is configured.
type NoOpPublisher struct{}

// RunCompleted for NoOpPublisher does nothing and always returns nil.
func (NoOpPublisher) RunCompleted(_ context.Context, _ RunCompleted) error {
	return nil
}
