// Package worker orchestrates one task pass per delivered queue message:
// decode, provision, execute, dispatch, with failure classification for the
// queue's redelivery layer.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	relayotel "github.com/Strob0t/AgentRelay/internal/adapter/otel"
	"github.com/Strob0t/AgentRelay/internal/codec"
	"github.com/Strob0t/AgentRelay/internal/config"
	"github.com/Strob0t/AgentRelay/internal/dispatch"
	"github.com/Strob0t/AgentRelay/internal/domain"
	"github.com/Strob0t/AgentRelay/internal/domain/task"
	"github.com/Strob0t/AgentRelay/internal/logger"
	"github.com/Strob0t/AgentRelay/internal/port/messagequeue"
	"github.com/Strob0t/AgentRelay/internal/runner"
	"github.com/Strob0t/AgentRelay/internal/sandbox"
)

// stderrCap bounds agent stderr when surfaced in error reporting.
const stderrCap = 4000

// Agent invocation flags. The full decoded task travels as one serialized
// argument; the binary never parses a command line beyond these two flags.
const (
	flagAgent = "--agent"
	flagTask  = "--task"
)

// Worker processes task messages. Each instance handles one message to
// completion at a time; horizontal concurrency is many instances, never
// concurrency within a pass.
type Worker struct {
	cfg        config.Worker
	sandboxes  *sandbox.Provisioner
	runner     *runner.Runner
	dispatcher *dispatch.Dispatcher
	metrics    *relayotel.Metrics
	log        *slog.Logger
}

// New creates a Worker.
func New(cfg config.Worker, sandboxes *sandbox.Provisioner, run *runner.Runner, dispatcher *dispatch.Dispatcher, metrics *relayotel.Metrics, log *slog.Logger) *Worker {
	return &Worker{
		cfg:        cfg,
		sandboxes:  sandboxes,
		runner:     run,
		dispatcher: dispatcher,
		metrics:    metrics,
		log:        log,
	}
}

// Handle is the messagequeue.Handler for the dispatch subject.
//
// Failure classification follows the taxonomy: malformed envelopes, unsafe
// identifiers, deadline kills and (by default) non-zero agent exits are
// terminal; spawn failures are left retryable for the queue. A dispatch
// failure after successful execution is reported and acknowledged: the
// task's core work is done, and redelivering it would duplicate sink side
// effects.
func (w *Worker) Handle(ctx context.Context, _ string, data []byte) error {
	start := time.Now()
	w.metrics.TasksStarted.Add(ctx, 1)

	t, err := codec.DecodeWithDeadline(data, w.cfg.DefaultDeadline)
	if err != nil {
		w.metrics.TasksFailed.Add(ctx, 1)
		w.log.Error("task decode failed", "error", err)
		return messagequeue.Terminal(err)
	}

	ctx = logger.WithCorrelationID(ctx, t.CorrelationID)
	ctx, span := relayotel.StartTaskSpan(ctx, t.CorrelationID, t.Agent)
	defer span.End()

	err = w.process(ctx, t)
	if err != nil {
		span.RecordError(err)
		w.metrics.TasksFailed.Add(ctx, 1)
		w.log.Error("task failed",
			"correlation_id", t.CorrelationID,
			"agent", t.Agent,
			"error", err,
		)
		return err
	}

	elapsed := time.Since(start)
	w.metrics.TasksCompleted.Add(ctx, 1)
	w.metrics.TaskDuration.Record(ctx, elapsed.Seconds())
	w.log.Info("task completed",
		"correlation_id", t.CorrelationID,
		"agent", t.Agent,
		"duration", elapsed,
	)
	return nil
}

// process runs the provision → execute → dispatch sequence for one task.
// The sandbox is released on every exit path.
func (w *Worker) process(ctx context.Context, t *task.Task) error {
	sb, err := w.sandboxes.Acquire(t.CorrelationID)
	if err != nil {
		if errors.Is(err, domain.ErrUnsafeIdentifier) {
			return messagequeue.Terminal(err)
		}
		// Filesystem trouble is environmental; let the queue redeliver.
		return err
	}
	defer w.sandboxes.Release(sb)

	res, err := w.execute(ctx, t, sb)
	if err != nil {
		return err
	}

	dispatchCtx, span := relayotel.StartDispatchSpan(ctx, t.CorrelationID, string(t.Reply.Kind))
	err = w.dispatcher.Dispatch(dispatchCtx, t, res)
	span.End()
	if err != nil {
		// DispatchOnly: the agent's work succeeded, so the message is
		// acknowledged rather than redelivered.
		w.metrics.TaskDispatchFailures.Add(ctx, 1)
		w.log.Error("dispatch failed after successful execution",
			"correlation_id", t.CorrelationID,
			"sink_kind", t.Reply.Kind,
			"error", err,
		)
	}
	return nil
}

// execute runs the agent binary in the sandbox and classifies the outcome.
func (w *Worker) execute(ctx context.Context, t *task.Task, sb *sandbox.Sandbox) (*task.ExecutionResult, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, messagequeue.Terminal(fmt.Errorf("%w: encode task: %v", domain.ErrMalformed, err))
	}

	execCtx, span := relayotel.StartExecSpan(ctx, t.CorrelationID)
	res, err := w.runner.Run(execCtx, runner.Spec{
		Binary:       w.cfg.AgentBinary,
		Args:         []string{flagAgent, t.Agent, flagTask, string(payload)},
		Env:          sb.Env(),
		Dir:          sb.WorkDir,
		HardDeadline: t.HardDeadline,
	})
	span.End()

	switch {
	case errors.Is(err, domain.ErrDeadlineExceeded):
		// A task that already blew its bound will blow it again.
		w.metrics.TaskTimeouts.Add(ctx, 1)
		return nil, messagequeue.Terminal(err)
	case errors.Is(err, domain.ErrSpawnFailed):
		return nil, err // retryable: may self-heal on another instance
	case err != nil:
		return nil, err
	}

	if res.ExitCode != 0 {
		agentErr := fmt.Errorf("%w: exit %d: %s",
			domain.ErrAgentFailed, res.ExitCode, capBytes(res.Stderr, stderrCap))
		if w.cfg.RetryAgentErrors {
			return nil, agentErr
		}
		return nil, messagequeue.Terminal(agentErr)
	}

	return res, nil
}

// capBytes bounds b to max bytes for error reporting.
func capBytes(b []byte, max int) []byte {
	if len(b) <= max {
		return b
	}
	return b[:max]
}
