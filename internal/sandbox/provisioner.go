// Package sandbox provisions isolated per-task filesystem roots and
// environment overlays for agent execution.
package sandbox

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Strob0t/AgentRelay/internal/domain"
)

// safeIdentifier matches correlation ids safe to use as a single path
// segment. Leading character is restricted so ids can never start with a
// dot or dash.
var safeIdentifier = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

const maxIdentifierLen = 128

// Sandbox is an isolated per-task filesystem root plus environment overlay.
// Owned exclusively by the worker pass that acquired it.
type Sandbox struct {
	// Root is the task's private directory: <provisioner root>/<id>.
	Root string
	// WorkDir is the agent's working directory inside the sandbox.
	WorkDir string

	env []string
}

// Env returns the full environment for the agent process: the parent PATH
// plus home/cache/config/tmp redirected under the sandbox root, so default
// tooling conventions cannot read or write outside it.
func (s *Sandbox) Env() []string {
	return s.env
}

// Provisioner creates and removes per-task sandboxes under a shared
// ephemeral root.
type Provisioner struct {
	root string
	log  *slog.Logger
}

// NewProvisioner creates a Provisioner rooted at the given directory.
func NewProvisioner(root string, log *slog.Logger) *Provisioner {
	return &Provisioner{root: root, log: log}
}

// Acquire validates the correlation id and creates the task's sandbox tree.
// Creation is idempotent: a pre-existing directory from an earlier delivery
// of the same task is acceptable.
func (p *Provisioner) Acquire(correlationID string) (*Sandbox, error) {
	if err := validateIdentifier(correlationID); err != nil {
		return nil, err
	}

	root := filepath.Join(p.root, correlationID)

	dirs := map[string]string{
		"work":   filepath.Join(root, "work"),
		"home":   filepath.Join(root, "home"),
		"cache":  filepath.Join(root, "cache"),
		"config": filepath.Join(root, "config"),
		"tmp":    filepath.Join(root, "tmp"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sandbox create %s: %w", dir, err)
		}
	}

	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + dirs["home"],
		"XDG_CACHE_HOME=" + dirs["cache"],
		"XDG_CONFIG_HOME=" + dirs["config"],
		"TMPDIR=" + dirs["tmp"],
	}

	return &Sandbox{
		Root:    root,
		WorkDir: dirs["work"],
		env:     env,
	}, nil
}

// Release removes the sandbox tree. Advisory: failure is logged and must not
// fail the task; platform-level ephemeral storage reclamation is the backstop.
func (p *Provisioner) Release(sb *Sandbox) {
	if sb == nil {
		return
	}
	if err := os.RemoveAll(sb.Root); err != nil {
		p.log.Warn("sandbox release failed", "root", sb.Root, "error", err)
	}
}

// validateIdentifier enforces the safe-character set for path segments.
// The id is carried end-to-end from the original trigger, so this is a hard
// security boundary, not input hygiene.
func validateIdentifier(id string) error {
	if id == "" || len(id) > maxIdentifierLen {
		return fmt.Errorf("%w: %q", domain.ErrUnsafeIdentifier, id)
	}
	if !safeIdentifier.MatchString(id) {
		return fmt.Errorf("%w: %q", domain.ErrUnsafeIdentifier, id)
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q", domain.ErrUnsafeIdentifier, id)
	}
	return nil
}
