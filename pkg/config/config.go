package config

import "time"

// Config is the root configuration structure for Ganymede.
// It contains all configuration sections for the HTTP server, the
// credential store, the upstream AI service, gateway behavior, and
// telemetry settings.
type Config struct {
	// Server contains HTTP server configuration including listen address
	// and timeouts.
	Server ServerConfig `yaml:"server"`

	// Database contains configuration for the embedded credential store.
	Database DatabaseConfig `yaml:"database"`

	// Upstream contains configuration for the upstream AI service.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Gateway contains runtime behavior toggles for request handling.
	// This section is hot-reloadable via the config watcher.
	Gateway GatewayConfig `yaml:"gateway"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response
	// writes. Streaming responses disable this per-request.
	// Default: 0 (no timeout, required for SSE)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown before in-flight requests are dropped.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains configuration for the credential store.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	// Default: "data/ganymede.db"
	Path string `yaml:"path"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// AdminToken is the bearer token seeded onto the reserved
	// administrator row at first initialization. Required.
	AdminToken string `yaml:"admin_token"`

	// ReclaimSchedule is the cron expression for the reclamation sweep.
	// The schedule is evaluated in UTC.
	// Default: "0 20 * * *" (daily at 20:00 UTC)
	ReclaimSchedule string `yaml:"reclaim_schedule"`

	// LogRetention is the number of request logs retained per user before
	// the oldest are soft-deleted.
	// Default: 100
	LogRetention int `yaml:"log_retention"`
}

// UpstreamConfig contains configuration for the upstream AI service.
type UpstreamConfig struct {
	// Host is the upstream API host.
	// Default: "api2.cursor.sh"
	Host string `yaml:"host"`

	// Timeout is the per-request timeout for upstream calls. Zero means
	// no timeout, leaving control to the caller's context.
	// Default: 0
	Timeout time.Duration `yaml:"timeout"`

	// MaxIdleConns is the connection pool size.
	// Default: 10
	MaxIdleConns int `yaml:"max_idle_conns"`

	// IdleConnTimeout is how long idle connections are kept.
	// Default: 90s
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// GatewayConfig contains runtime behavior toggles for request handling.
// These fields may change at runtime when the config watcher is enabled;
// read them through the Runtime accessor rather than caching.
type GatewayConfig struct {
	// StreamCheck enables inspection of the first upstream chunk before
	// committing to a streamed reply, so an immediate upstream error can
	// still become a proper HTTP error response.
	// Default: true
	StreamCheck bool `yaml:"stream_check"`

	// FinishReasonChunk controls whether a terminal chunk carrying
	// finish_reason "stop" is emitted before the [DONE] sentinel.
	// Default: true
	FinishReasonChunk bool `yaml:"finish_reason_chunk"`

	// AllowUnlisted admits any model whose id starts with "claude" even
	// when it is absent from the supported model table.
	// Default: false
	AllowUnlisted bool `yaml:"allow_unlisted"`
}

// TelemetryConfig contains logging and metrics configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format ("json", "text").
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the /metrics endpoint is registered.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix.
	// Default: "ganymede"
	Namespace string `yaml:"namespace"`
}
