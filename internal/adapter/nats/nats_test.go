package nats

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/AgentRelay/internal/config"
	"github.com/Strob0t/AgentRelay/internal/port/messagequeue"
)

var _ messagequeue.Queue = (*Queue)(nil)

// connectTest requires a running NATS server with JetStream enabled; the
// tests skip when NATS_TEST_URL is unset.
func connectTest(t *testing.T) *Queue {
	t.Helper()
	url := os.Getenv("NATS_TEST_URL")
	if url == "" {
		t.Skip("NATS_TEST_URL not set")
	}

	suffix := uuid.NewString()[:8]
	cfg := config.NATS{
		URL:        url,
		Stream:     "AGENTRELAY_TEST_" + suffix,
		Durable:    "test-worker-" + suffix,
		MaxDeliver: 3,
		AckWait:    5 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	q, err := Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		_ = q.js.DeleteStream(context.Background(), cfg.Stream)
		_ = q.Close()
	})
	return q
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	q := connectTest(t)
	ctx := context.Background()

	received := make(chan []byte, 1)
	cancel, err := q.Subscribe(ctx, messagequeue.SubjectTaskDispatch, func(_ context.Context, _ string, data []byte) error {
		received <- data
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	payload := []byte(`{"agent":{"name":"triage"}}`)
	if err := q.Publish(ctx, messagequeue.SubjectTaskDispatch, payload, uuid.NewString()); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-received:
		if string(got) != string(payload) {
			t.Errorf("expected %s, got %s", payload, got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestPublishDedupByMsgID(t *testing.T) {
	q := connectTest(t)
	ctx := context.Background()

	deliveries := make(chan struct{}, 10)
	cancel, err := q.Subscribe(ctx, messagequeue.SubjectTaskDispatch, func(context.Context, string, []byte) error {
		deliveries <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	msgID := uuid.NewString()
	for i := 0; i < 3; i++ {
		if err := q.Publish(ctx, messagequeue.SubjectTaskDispatch, []byte("{}"), msgID); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}

	select {
	case <-deliveries:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for first delivery")
	}

	select {
	case <-deliveries:
		t.Fatal("duplicate msg id delivered twice")
	case <-time.After(time.Second):
	}
}

func TestTerminalErrorStopsRedelivery(t *testing.T) {
	q := connectTest(t)
	ctx := context.Background()

	deliveries := make(chan struct{}, 10)
	cancel, err := q.Subscribe(ctx, messagequeue.SubjectTaskDispatch, func(context.Context, string, []byte) error {
		deliveries <- struct{}{}
		return messagequeue.Terminal(errors.New("poison"))
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	if err := q.Publish(ctx, messagequeue.SubjectTaskDispatch, []byte("{}"), ""); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-deliveries:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	// Term() means the queue must not try again.
	select {
	case <-deliveries:
		t.Fatal("terminal message was redelivered")
	case <-time.After(2 * time.Second):
	}
}

func TestRetryableErrorRedelivers(t *testing.T) {
	q := connectTest(t)
	ctx := context.Background()

	deliveries := make(chan int, 10)
	attempt := 0
	cancel, err := q.Subscribe(ctx, messagequeue.SubjectTaskDispatch, func(context.Context, string, []byte) error {
		attempt++
		deliveries <- attempt
		if attempt < 2 {
			return fmt.Errorf("transient failure %d", attempt)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	if err := q.Publish(ctx, messagequeue.SubjectTaskDispatch, []byte("{}"), ""); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	for want := 1; want <= 2; want++ {
		select {
		case got := <-deliveries:
			if got != want {
				t.Fatalf("expected attempt %d, got %d", want, got)
			}
		case <-time.After(10 * time.Second):
			t.Fatalf("timed out waiting for attempt %d", want)
		}
	}
}
