// Package notifier defines the result sink port (interface) and registry.
package notifier

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a notifier is missing required settings.
var ErrNotConfigured = errors.New("notifier: not configured")

// Notification is the payload sent through a Notifier.
type Notification struct {
	// CorrelationID of the task that produced the output.
	CorrelationID string
	// Body is the agent's stdout. Sinks truncate to their own fixed limit.
	Body []byte
}

// Notifier is the port interface for delivering task output to a sink.
type Notifier interface {
	// Name returns the unique identifier for this sink (e.g. "slack-message").
	Name() string

	// Send delivers the notification.
	Send(ctx context.Context, n Notification) error
}
