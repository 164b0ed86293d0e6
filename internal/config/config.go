// Package config provides hierarchical configuration loading for AgentRelay.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the AgentRelay worker.
type Config struct {
	Server    Server    `yaml:"server"`
	NATS      NATS      `yaml:"nats"`
	Worker    Worker    `yaml:"worker"`
	Sandbox   Sandbox   `yaml:"sandbox"`
	Logging   Logging   `yaml:"logging"`
	Breaker   Breaker   `yaml:"breaker"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Server holds the HTTP ingress configuration.
type Server struct {
	Port string `yaml:"port"`
	// IngressSecret is the HMAC-SHA256 key for task submission signatures.
	// Empty disables the ingress endpoint (worker-only deployment).
	IngressSecret string `yaml:"ingress_secret"`
}

// NATS holds NATS JetStream configuration.
type NATS struct {
	URL     string `yaml:"url"`
	Stream  string `yaml:"stream"`
	Durable string `yaml:"durable"`
	// MaxDeliver bounds redelivery attempts before the stream's advisory
	// dead-letter path takes over.
	MaxDeliver int `yaml:"max_deliver"`
	// AckWait must exceed the longest hard deadline plus dispatch overhead,
	// or in-flight tasks get redelivered while still running.
	AckWait time.Duration `yaml:"ack_wait"`
}

// Worker holds task execution configuration.
type Worker struct {
	// AgentBinary is the external reasoning binary invoked per task.
	AgentBinary string `yaml:"agent_binary"`
	// DefaultDeadline applies when the envelope omits timeouts.hard_seconds.
	DefaultDeadline time.Duration `yaml:"default_deadline"`
	// RetryAgentErrors classifies non-zero agent exits as retryable instead
	// of terminal.
	RetryAgentErrors bool `yaml:"retry_agent_errors"`
}

// Sandbox holds per-task sandbox configuration.
type Sandbox struct {
	// Root is the ephemeral directory under which per-task sandboxes live.
	Root string `yaml:"root"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// Breaker holds circuit breaker configuration for sink calls.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Telemetry holds OpenTelemetry export configuration.
type Telemetry struct {
	// OTLPEndpoint is the gRPC collector endpoint. Empty disables export.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port: "8080",
		},
		NATS: NATS{
			URL:        "nats://localhost:4222",
			Stream:     "AGENTRELAY",
			Durable:    "agentrelay-worker",
			MaxDeliver: 5,
			AckWait:    20 * time.Minute,
		},
		Worker: Worker{
			AgentBinary:     "/usr/local/bin/agent",
			DefaultDeadline: 900 * time.Second,
		},
		Sandbox: Sandbox{
			Root: "/tmp/agentrelay",
		},
		Logging: Logging{
			Level:   "info",
			Service: "agentrelay-worker",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
	}
}
