package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.Server.Port)
	}
	if cfg.NATS.Stream != "AGENTRELAY" {
		t.Errorf("expected default stream, got %q", cfg.NATS.Stream)
	}
	if cfg.Worker.DefaultDeadline != 900*time.Second {
		t.Errorf("expected 900s default deadline, got %v", cfg.Worker.DefaultDeadline)
	}
	if cfg.NATS.MaxDeliver != 5 {
		t.Errorf("expected max_deliver 5, got %d", cfg.NATS.MaxDeliver)
	}
	if cfg.Worker.RetryAgentErrors {
		t.Error("expected retry_agent_errors false by default")
	}
}

func TestLoadFromYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentrelay.yaml")
	yaml := strings.Join([]string{
		"server:",
		"  port: \"9090\"",
		"worker:",
		"  agent_binary: /opt/agent",
		"  retry_agent_errors: true",
		"nats:",
		"  max_deliver: 2",
	}, "\n")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %q", cfg.Server.Port)
	}
	if cfg.Worker.AgentBinary != "/opt/agent" {
		t.Errorf("expected /opt/agent, got %q", cfg.Worker.AgentBinary)
	}
	if !cfg.Worker.RetryAgentErrors {
		t.Error("expected retry_agent_errors true")
	}
	if cfg.NATS.MaxDeliver != 2 {
		t.Errorf("expected max_deliver 2, got %d", cfg.NATS.MaxDeliver)
	}
	// Untouched keys keep their defaults.
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected default nats url, got %q", cfg.NATS.URL)
	}
}

func TestLoadFromEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentrelay.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("AGENTRELAY_PORT", "7070")
	t.Setenv("NATS_URL", "nats://queue:4222")
	t.Setenv("AGENTRELAY_DEFAULT_DEADLINE", "5m")
	t.Setenv("AGENTRELAY_RETRY_AGENT_ERRORS", "true")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected env port 7070, got %q", cfg.Server.Port)
	}
	if cfg.NATS.URL != "nats://queue:4222" {
		t.Errorf("expected env nats url, got %q", cfg.NATS.URL)
	}
	if cfg.Worker.DefaultDeadline != 5*time.Minute {
		t.Errorf("expected 5m deadline, got %v", cfg.Worker.DefaultDeadline)
	}
	if !cfg.Worker.RetryAgentErrors {
		t.Error("expected retry_agent_errors true from env")
	}
}

func TestLoadFromInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentrelay.yaml")
	if err := os.WriteFile(path, []byte("::: not yaml"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }},
		{"empty nats url", func(c *Config) { c.NATS.URL = "" }},
		{"empty stream", func(c *Config) { c.NATS.Stream = "" }},
		{"empty agent binary", func(c *Config) { c.Worker.AgentBinary = "" }},
		{"zero deadline", func(c *Config) { c.Worker.DefaultDeadline = 0 }},
		{"empty sandbox root", func(c *Config) { c.Sandbox.Root = "" }},
		{"zero max deliver", func(c *Config) { c.NATS.MaxDeliver = 0 }},
		{"zero breaker failures", func(c *Config) { c.Breaker.MaxFailures = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			if err := validate(&cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
