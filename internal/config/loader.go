package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "agentrelay.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "AGENTRELAY_PORT")
	setString(&cfg.Server.IngressSecret, "AGENTRELAY_INGRESS_SECRET")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Stream, "AGENTRELAY_NATS_STREAM")
	setString(&cfg.NATS.Durable, "AGENTRELAY_NATS_DURABLE")
	setInt(&cfg.NATS.MaxDeliver, "AGENTRELAY_NATS_MAX_DELIVER")
	setDuration(&cfg.NATS.AckWait, "AGENTRELAY_NATS_ACK_WAIT")
	setString(&cfg.Worker.AgentBinary, "AGENTRELAY_AGENT_BINARY")
	setDuration(&cfg.Worker.DefaultDeadline, "AGENTRELAY_DEFAULT_DEADLINE")
	setBool(&cfg.Worker.RetryAgentErrors, "AGENTRELAY_RETRY_AGENT_ERRORS")
	setString(&cfg.Sandbox.Root, "AGENTRELAY_SANDBOX_ROOT")
	setString(&cfg.Logging.Level, "AGENTRELAY_LOG_LEVEL")
	setString(&cfg.Logging.Service, "AGENTRELAY_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "AGENTRELAY_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "AGENTRELAY_BREAKER_TIMEOUT")
	setString(&cfg.Telemetry.OTLPEndpoint, "AGENTRELAY_OTLP_ENDPOINT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.NATS.Stream == "" {
		return errors.New("nats.stream is required")
	}
	if cfg.Worker.AgentBinary == "" {
		return errors.New("worker.agent_binary is required")
	}
	if cfg.Worker.DefaultDeadline <= 0 {
		return errors.New("worker.default_deadline must be positive")
	}
	if cfg.Sandbox.Root == "" {
		return errors.New("sandbox.root is required")
	}
	if cfg.NATS.MaxDeliver < 1 {
		return errors.New("nats.max_deliver must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
