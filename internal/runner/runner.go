// Package runner executes the external agent binary under a hard wall-clock
// deadline with guaranteed process-group termination.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"syscall"
	"time"

	"github.com/Strob0t/AgentRelay/internal/domain"
	"github.com/Strob0t/AgentRelay/internal/domain/task"
)

// defaultWaitDelay bounds Wait against descendants that inherited the output
// pipes and survived a failed group kill.
const defaultWaitDelay = 5 * time.Second

// Spec describes one agent invocation.
type Spec struct {
	Binary string
	// Args is passed as a discrete argv vector; nothing is ever concatenated
	// into a shell command line, so attacker-influenced task args cannot
	// inject.
	Args []string
	Env  []string
	Dir  string
	// HardDeadline is the wall-clock bound after which the process group is
	// forcibly terminated.
	HardDeadline time.Duration
}

// Runner spawns agent processes.
type Runner struct {
	log       *slog.Logger
	waitDelay time.Duration
}

// New creates a Runner.
func New(log *slog.Logger) *Runner {
	return &Runner{log: log, waitDelay: defaultWaitDelay}
}

// Run spawns the binary as a new process group with stdin closed and
// stdout/stderr captured, then waits for natural exit or the hard deadline.
//
// A non-zero exit before the deadline is a result, not an error: callers may
// want the partial stderr. Deadline expiry kills the entire group, awaits the
// final exit, and returns domain.ErrDeadlineExceeded alongside the partial
// capture with TimedOut set. A spawn failure returns domain.ErrSpawnFailed
// without ever arming the deadline timer.
func (r *Runner) Run(ctx context.Context, spec Spec) (*task.ExecutionResult, error) {
	if spec.HardDeadline <= 0 {
		return nil, fmt.Errorf("runner: non-positive hard deadline %v", spec.HardDeadline)
	}

	cmd := exec.Command(spec.Binary, spec.Args...) //nolint:gosec // G204: argv vector, no shell
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdin = nil // reads see EOF immediately

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Own process group so the deadline kill reaches every descendant,
	// not just the top-level process.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = r.waitDelay

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrSpawnFailed, spec.Binary, err)
	}

	// Wait in its own goroutine so output capture can never block the
	// watchdog below.
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(spec.HardDeadline)
	defer timer.Stop()

	select {
	case waitErr := <-done:
		return buildResult(&stdout, &stderr, waitErr)

	case <-timer.C:
		r.killGroup(cmd)
		<-done // always await the final exit before returning
		res := &task.ExecutionResult{
			ExitCode: -1,
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.Bytes(),
			TimedOut: true,
		}
		return res, fmt.Errorf("%w after %v", domain.ErrDeadlineExceeded, spec.HardDeadline)

	case <-ctx.Done():
		r.killGroup(cmd)
		<-done
		return nil, fmt.Errorf("runner: %w", ctx.Err())
	}
}

// buildResult converts a Wait outcome into an ExecutionResult.
func buildResult(stdout, stderr *bytes.Buffer, waitErr error) (*task.ExecutionResult, error) {
	res := &task.ExecutionResult{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}

	if waitErr == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}

	// Wait failed for a reason other than a non-zero exit (I/O error,
	// WaitDelay expiry). Environmental, so classified like a spawn failure.
	return nil, fmt.Errorf("%w: wait: %v", domain.ErrSpawnFailed, waitErr)
}

// killGroup force-terminates the entire process group, falling back to the
// top-level process when group signaling fails (unsupported, or the group
// leader already exited).
func (r *Runner) killGroup(cmd *exec.Cmd) {
	proc := cmd.Process
	if proc == nil {
		return
	}

	// Negative pid addresses the group created by Setpgid.
	if err := syscall.Kill(-proc.Pid, syscall.SIGKILL); err != nil {
		r.log.Warn("process group kill failed, killing leader", "pid", proc.Pid, "error", err)
		if err := proc.Kill(); err != nil {
			r.log.Warn("leader kill failed", "pid", proc.Pid, "error", err)
		}
	}
}
