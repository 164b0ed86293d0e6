// Package dispatch routes captured agent output to the sink named by the
// task's reply descriptor.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Strob0t/AgentRelay/internal/config"
	"github.com/Strob0t/AgentRelay/internal/domain"
	"github.com/Strob0t/AgentRelay/internal/domain/task"
	"github.com/Strob0t/AgentRelay/internal/port/notifier"
	"github.com/Strob0t/AgentRelay/internal/resilience"
)

// Sink names as registered by the adapter packages.
const (
	SinkIssueComment = "github-comment"
	SinkChatMessage  = "slack-message"
)

// Dispatcher delivers execution results exactly once per successful pass.
// Each sink gets its own circuit breaker: chat callback URLs are
// caller-supplied, and a run of unreachable callbacks must not block
// deliveries to the other sink.
type Dispatcher struct {
	breakers map[string]*resilience.Breaker
	log      *slog.Logger

	// GitHubAPIURL overrides the REST root; empty uses the public API.
	GitHubAPIURL string
}

// NewDispatcher creates a Dispatcher with one breaker per sink.
func NewDispatcher(cfg config.Breaker, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		breakers: map[string]*resilience.Breaker{
			SinkIssueComment: resilience.NewBreaker(cfg.MaxFailures, cfg.Timeout),
			SinkChatMessage:  resilience.NewBreaker(cfg.MaxFailures, cfg.Timeout),
		},
		log: log,
	}
}

// Dispatch routes the result to the descriptor's sink. A "none" descriptor
// is a successful no-op. Sink failures are wrapped in
// domain.ErrDispatchFailed so the worker can distinguish them from execution
// failures: the task's core work already completed.
func (d *Dispatcher) Dispatch(ctx context.Context, t *task.Task, res *task.ExecutionResult) error {
	name, config, ok := d.sinkFor(t)
	if !ok {
		return nil
	}

	sink, err := notifier.New(name, config)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDispatchFailed, err)
	}

	n := notifier.Notification{
		CorrelationID: t.CorrelationID,
		Body:          res.Stdout,
	}

	err = d.breakers[name].Do(ctx, func(ctx context.Context) error {
		return sink.Send(ctx, n)
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrDispatchFailed, name, err)
	}

	d.log.Info("result dispatched",
		"correlation_id", t.CorrelationID,
		"sink", name,
		"bytes", len(res.Stdout),
	)
	return nil
}

// sinkFor maps a reply descriptor onto a registered sink and its per-task
// configuration. Returns ok=false for descriptors needing no delivery.
func (d *Dispatcher) sinkFor(t *task.Task) (name string, config map[string]string, ok bool) {
	switch t.Reply.Kind {
	case task.ReplyIssueComment:
		return SinkIssueComment, map[string]string{
			"repo":    t.Reply.Repo,
			"number":  strconv.Itoa(t.Reply.Number),
			"token":   t.Reply.Token,
			"api_url": d.GitHubAPIURL,
		}, true
	case task.ReplyChatMessage:
		return SinkChatMessage, map[string]string{
			"callback_url": t.Reply.CallbackURL,
		}, true
	default:
		return "", nil, false
	}
}
