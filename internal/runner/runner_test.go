package runner

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Strob0t/AgentRelay/internal/domain"
)

func testRunner() *Runner {
	return New(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

// writeScript creates an executable shell script in a temp dir.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunCapturesStdout(t *testing.T) {
	r := testRunner()

	res, err := r.Run(context.Background(), Spec{
		Binary:       writeScript(t, `printf ok`),
		Dir:          t.TempDir(),
		HardDeadline: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("expected exit 0, got %d", res.ExitCode)
	}
	if string(res.Stdout) != "ok" {
		t.Errorf("expected stdout ok, got %q", res.Stdout)
	}
	if res.TimedOut {
		t.Error("expected TimedOut=false")
	}
}

func TestRunNonZeroExitIsResultNotError(t *testing.T) {
	r := testRunner()

	res, err := r.Run(context.Background(), Spec{
		Binary:       writeScript(t, `printf boom >&2; exit 3`),
		Dir:          t.TempDir(),
		HardDeadline: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("expected exit 3, got %d", res.ExitCode)
	}
	if string(res.Stderr) != "boom" {
		t.Errorf("expected stderr boom, got %q", res.Stderr)
	}
}

func TestRunSpawnFailure(t *testing.T) {
	r := testRunner()

	res, err := r.Run(context.Background(), Spec{
		Binary:       filepath.Join(t.TempDir(), "does-not-exist"),
		Dir:          t.TempDir(),
		HardDeadline: 10 * time.Second,
	})
	if !errors.Is(err, domain.ErrSpawnFailed) {
		t.Fatalf("expected ErrSpawnFailed, got %v", err)
	}
	if res != nil {
		t.Error("expected no result on spawn failure")
	}
}

func TestRunKillsAtHardDeadline(t *testing.T) {
	r := testRunner()

	start := time.Now()
	res, err := r.Run(context.Background(), Spec{
		Binary:       writeScript(t, `printf partial; sleep 30`),
		Dir:          t.TempDir(),
		HardDeadline: 200 * time.Millisecond,
	})
	elapsed := time.Since(start)

	if !errors.Is(err, domain.ErrDeadlineExceeded) {
		t.Fatalf("expected ErrDeadlineExceeded, got %v", err)
	}
	if elapsed > 5*time.Second {
		t.Errorf("expected return shortly after deadline, took %v", elapsed)
	}
	if res == nil || !res.TimedOut {
		t.Errorf("expected partial result with TimedOut, got %+v", res)
	}
	if res != nil && string(res.Stdout) != "partial" {
		t.Errorf("expected partial stdout captured, got %q", res.Stdout)
	}
}

func TestRunKillsDescendants(t *testing.T) {
	r := testRunner()

	// The script spawns a child and waits on it; the group kill must reach
	// both, or Wait (bounded by WaitDelay) would drag well past the deadline.
	start := time.Now()
	_, err := r.Run(context.Background(), Spec{
		Binary:       writeScript(t, `sleep 30 & wait`),
		Dir:          t.TempDir(),
		HardDeadline: 200 * time.Millisecond,
	})
	elapsed := time.Since(start)

	if !errors.Is(err, domain.ErrDeadlineExceeded) {
		t.Fatalf("expected ErrDeadlineExceeded, got %v", err)
	}
	if elapsed > 3*time.Second {
		t.Errorf("descendants survived the group kill, took %v", elapsed)
	}
}

func TestRunStdinClosed(t *testing.T) {
	r := testRunner()

	// cat must see EOF immediately rather than block on stdin.
	res, err := r.Run(context.Background(), Spec{
		Binary:       writeScript(t, `cat`),
		Dir:          t.TempDir(),
		HardDeadline: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("expected exit 0, got %d", res.ExitCode)
	}
}

func TestRunContextCancel(t *testing.T) {
	r := testRunner()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := r.Run(ctx, Spec{
		Binary:       writeScript(t, `sleep 30`),
		Dir:          t.TempDir(),
		HardDeadline: time.Minute,
	})
	if err == nil {
		t.Fatal("expected error on context cancel")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("cancel took %v", time.Since(start))
	}
}

func TestRunRejectsNonPositiveDeadline(t *testing.T) {
	r := testRunner()

	_, err := r.Run(context.Background(), Spec{
		Binary:       "/bin/true",
		HardDeadline: 0,
	})
	if err == nil {
		t.Fatal("expected error for zero deadline")
	}
}

func TestRunUsesWorkDirAndEnv(t *testing.T) {
	r := testRunner()
	dir := t.TempDir()

	res, err := r.Run(context.Background(), Spec{
		Binary:       writeScript(t, `printf '%s %s' "$PWD" "$HOME"`),
		Env:          []string{"PATH=" + os.Getenv("PATH"), "HOME=/sandbox/home"},
		Dir:          dir,
		HardDeadline: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := dir + " /sandbox/home"
	if string(res.Stdout) != want {
		t.Errorf("expected %q, got %q", want, res.Stdout)
	}
}
