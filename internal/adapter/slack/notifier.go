// Package slack implements the chat-message sink: task output posted to a
// caller-supplied callback URL as a bounded text payload.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Strob0t/AgentRelay/internal/port/notifier"
)

const sinkName = "slack-message"

// maxTextBytes is the fixed payload bound for chat sinks. Truncation is
// silent and deterministic.
const maxTextBytes = 40000

// Notifier posts task output to a chat callback URL.
type Notifier struct {
	callbackURL string
	httpClient  *http.Client
}

// NewNotifier creates a chat notifier for the given callback URL.
func NewNotifier(callbackURL string) *Notifier {
	return &Notifier{
		callbackURL: callbackURL,
		httpClient:  http.DefaultClient,
	}
}

// Register registers the chat sink factory. The callback URL arrives
// per-task from the reply descriptor.
func Register() {
	notifier.Register(sinkName, func(config map[string]string) (notifier.Notifier, error) {
		return NewNotifier(config["callback_url"]), nil
	})
}

func (n *Notifier) Name() string { return sinkName }

// chatMessage is the JSON body posted to the callback URL.
type chatMessage struct {
	Text string `json:"text"`
}

func (n *Notifier) Send(ctx context.Context, notification notifier.Notification) error {
	if n.callbackURL == "" {
		return notifier.ErrNotConfigured
	}

	msg := chatMessage{Text: string(truncate(notification.Body, maxTextBytes))}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("chat marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chat send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chat callback %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

func truncate(b []byte, max int) []byte {
	if len(b) <= max {
		return b
	}
	return b[:max]
}
