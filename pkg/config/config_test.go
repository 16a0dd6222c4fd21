package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeConfigFile writes a config file into a temp dir and returns its path.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfigFile(t, "database:\n  admin_token: test-admin\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("ListenAddress = %q, want %q", cfg.Server.ListenAddress, DefaultListenAddress)
	}
	if cfg.Database.Path != DefaultDatabasePath {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, DefaultDatabasePath)
	}
	if cfg.Database.ReclaimSchedule != DefaultReclaimSchedule {
		t.Errorf("ReclaimSchedule = %q, want %q", cfg.Database.ReclaimSchedule, DefaultReclaimSchedule)
	}
	if cfg.Database.LogRetention != DefaultLogRetention {
		t.Errorf("LogRetention = %d, want %d", cfg.Database.LogRetention, DefaultLogRetention)
	}

	// Boolean toggles default to enabled even though their zero value is false.
	if !cfg.Gateway.StreamCheck {
		t.Error("Gateway.StreamCheck should default to true")
	}
	if !cfg.Gateway.FinishReasonChunk {
		t.Error("Gateway.FinishReasonChunk should default to true")
	}
	if cfg.Gateway.AllowUnlisted {
		t.Error("Gateway.AllowUnlisted should default to false")
	}
}

func TestLoadConfig_ExplicitValues(t *testing.T) {
	path := writeConfigFile(t, `
server:
  listen_address: "0.0.0.0:9090"
  read_timeout: 10s
database:
  path: /tmp/gw.db
  admin_token: secret
  log_retention: 50
gateway:
  stream_check: false
upstream:
  host: upstream.example.com
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("ReadTimeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.Database.LogRetention != 50 {
		t.Errorf("LogRetention = %d", cfg.Database.LogRetention)
	}
	if cfg.Gateway.StreamCheck {
		t.Error("StreamCheck should be false when set explicitly")
	}
	if !cfg.Gateway.FinishReasonChunk {
		t.Error("FinishReasonChunk should keep its default when absent")
	}
	if cfg.Upstream.Host != "upstream.example.com" {
		t.Errorf("Upstream.Host = %q", cfg.Upstream.Host)
	}
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad listen address", "server:\n  listen_address: nope\n"},
		{"bad cron expression", "database:\n  reclaim_schedule: \"not cron\"\n"},
		{"bad log level", "telemetry:\n  logging:\n    level: loud\n"},
		{"bad log format", "telemetry:\n  logging:\n    format: xml\n"},
		{"zero retention rejected", "database:\n  log_retention: -5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.content)
			if _, err := LoadConfig(path); err == nil {
				t.Error("LoadConfig should have failed")
			}
		})
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, "server:\n  listen_address: \"127.0.0.1:8080\"\n")

	t.Setenv("GANYMEDE_SERVER_LISTEN_ADDRESS", "0.0.0.0:1234")
	t.Setenv("GANYMEDE_GATEWAY_STREAM_CHECK", "false")
	t.Setenv("GANYMEDE_DATABASE_LOG_RETENTION", "25")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:1234" {
		t.Errorf("ListenAddress = %q, want env override", cfg.Server.ListenAddress)
	}
	if cfg.Gateway.StreamCheck {
		t.Error("StreamCheck should be overridden to false")
	}
	if cfg.Database.LogRetention != 25 {
		t.Errorf("LogRetention = %d, want 25", cfg.Database.LogRetention)
	}
}

func TestRuntime_Apply(t *testing.T) {
	rt := NewRuntime(GatewayConfig{StreamCheck: true, FinishReasonChunk: false, AllowUnlisted: true})

	if !rt.StreamCheck() || rt.FinishReasonChunk() || !rt.AllowUnlisted() {
		t.Error("Runtime did not reflect initial gateway config")
	}

	rt.Apply(GatewayConfig{StreamCheck: false, FinishReasonChunk: true})
	if rt.StreamCheck() || !rt.FinishReasonChunk() || rt.AllowUnlisted() {
		t.Error("Runtime did not reflect applied gateway config")
	}
}
