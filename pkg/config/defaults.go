package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Database defaults
	DefaultDatabasePath    = "data/ganymede.db"
	DefaultBusyTimeout     = 5 * time.Second
	DefaultReclaimSchedule = "0 20 * * *"
	DefaultLogRetention    = 100

	// Upstream defaults
	DefaultUpstreamHost    = "api2.cursor.sh"
	DefaultMaxIdleConns    = 10
	DefaultIdleConnTimeout = 90 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "text"
	DefaultMetricsNamespace = "ganymede"
)

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Database defaults
	if cfg.Database.Path == "" {
		cfg.Database.Path = DefaultDatabasePath
	}
	if cfg.Database.BusyTimeout == 0 {
		cfg.Database.BusyTimeout = DefaultBusyTimeout
	}
	if cfg.Database.ReclaimSchedule == "" {
		cfg.Database.ReclaimSchedule = DefaultReclaimSchedule
	}
	if cfg.Database.LogRetention == 0 {
		cfg.Database.LogRetention = DefaultLogRetention
	}

	// Upstream defaults
	if cfg.Upstream.Host == "" {
		cfg.Upstream.Host = DefaultUpstreamHost
	}
	if cfg.Upstream.MaxIdleConns == 0 {
		cfg.Upstream.MaxIdleConns = DefaultMaxIdleConns
	}
	if cfg.Upstream.IdleConnTimeout == 0 {
		cfg.Upstream.IdleConnTimeout = DefaultIdleConnTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// NewDefaultConfig returns a Config with all defaults applied and the
// gateway toggles set to their documented defaults. Used by tests and by
// `run` when no config file exists at the default location.
func NewDefaultConfig() *Config {
	cfg := &Config{
		Gateway: GatewayConfig{
			StreamCheck:       true,
			FinishReasonChunk: true,
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: true},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
