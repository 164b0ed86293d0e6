// Package messagequeue defines the message queue port (interface).
package messagequeue

import (
	"context"
	"errors"
	"fmt"
)

// ErrTerminal marks a handler failure that redelivery cannot fix. The queue
// adapter terminates the message (poison path) instead of requeueing it.
var ErrTerminal = errors.New("terminal message failure")

// Terminal wraps err so the queue adapter routes the message to the
// dead-letter path instead of redelivering it.
func Terminal(err error) error {
	return fmt.Errorf("%w: %w", ErrTerminal, err)
}

// Handler processes a message received from the queue. A nil return
// acknowledges the message; an error wrapped with Terminal rejects it for
// good; any other error makes it available for redelivery.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject. msgID, when non-empty,
	// enables publish-side deduplication within the stream's dedup window.
	Publish(ctx context.Context, subject string, data []byte, msgID string) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error
}

// Subject constants for NATS subjects used by AgentRelay.
const (
	// SubjectTaskDispatch carries task envelopes to worker instances.
	SubjectTaskDispatch = "tasks.dispatch"
)
