package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// Absent keys keep their documented defaults (including the gateway
// toggles, which default to enabled). The configuration is validated
// before being returned.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	// Unmarshal over a fully defaulted config so absent boolean keys keep
	// their non-zero defaults.
	cfg := NewDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Environment variables follow
// the naming convention GANYMEDE_SECTION_FIELD (e.g.
// GANYMEDE_SERVER_LISTEN_ADDRESS) and always take precedence over
// file-based configuration.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Variables use the format GANYMEDE_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("GANYMEDE_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("GANYMEDE_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("GANYMEDE_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}

	// Database overrides
	if val := os.Getenv("GANYMEDE_DATABASE_PATH"); val != "" {
		cfg.Database.Path = val
	}
	if val := os.Getenv("GANYMEDE_DATABASE_ADMIN_TOKEN"); val != "" {
		cfg.Database.AdminToken = val
	}
	if val := os.Getenv("GANYMEDE_DATABASE_LOG_RETENTION"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Database.LogRetention = i
		}
	}

	// Upstream overrides
	if val := os.Getenv("GANYMEDE_UPSTREAM_HOST"); val != "" {
		cfg.Upstream.Host = val
	}
	if val := os.Getenv("GANYMEDE_UPSTREAM_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Upstream.Timeout = d
		}
	}

	// Gateway overrides
	if val := os.Getenv("GANYMEDE_GATEWAY_STREAM_CHECK"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Gateway.StreamCheck = b
		}
	}
	if val := os.Getenv("GANYMEDE_GATEWAY_FINISH_REASON_CHUNK"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Gateway.FinishReasonChunk = b
		}
	}
	if val := os.Getenv("GANYMEDE_GATEWAY_ALLOW_UNLISTED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Gateway.AllowUnlisted = b
		}
	}

	// Telemetry overrides
	if val := os.Getenv("GANYMEDE_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("GANYMEDE_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("GANYMEDE_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
}
