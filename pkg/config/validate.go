package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate checks a Config for invalid or inconsistent values.
// It returns the first validation error encountered.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}
	if err := validateDatabase(&cfg.Database); err != nil {
		return err
	}
	if err := validateUpstream(&cfg.Upstream); err != nil {
		return err
	}
	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return err
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		return fmt.Errorf("server.listen_address %q is not host:port: %w", cfg.ListenAddress, err)
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 || cfg.IdleTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}
	return nil
}

func validateDatabase(cfg *DatabaseConfig) error {
	if strings.TrimSpace(cfg.Path) == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if cfg.LogRetention < 1 {
		return fmt.Errorf("database.log_retention must be at least 1, got %d", cfg.LogRetention)
	}
	if _, err := cron.ParseStandard(cfg.ReclaimSchedule); err != nil {
		return fmt.Errorf("database.reclaim_schedule %q is not a valid cron expression: %w", cfg.ReclaimSchedule, err)
	}
	return nil
}

func validateUpstream(cfg *UpstreamConfig) error {
	if strings.TrimSpace(cfg.Host) == "" {
		return fmt.Errorf("upstream.host must not be empty")
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("upstream.timeout must not be negative")
	}
	return nil
}

func validateTelemetry(cfg *TelemetryConfig) error {
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("telemetry.logging.level %q is not one of debug, info, warn, error", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("telemetry.logging.format %q is not one of json, text", cfg.Logging.Format)
	}
	return nil
}
