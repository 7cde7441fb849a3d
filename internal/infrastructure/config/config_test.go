package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/prysma-test.db"
mqtt:
  broker:
    host: "broker.local"
    port: 1884
  qos: 0
  namespace: "lab"
lights:
  confirmation: "ack"
  ack_timeout: 1500
api:
  port: 9000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/prysma-test.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.MQTT.Broker.Host != "broker.local" || cfg.MQTT.Broker.Port != 1884 {
		t.Errorf("MQTT.Broker = %+v", cfg.MQTT.Broker)
	}
	if cfg.MQTT.Namespace != "lab" {
		t.Errorf("MQTT.Namespace = %q, want lab", cfg.MQTT.Namespace)
	}
	if cfg.Lights.Confirmation != ConfirmAck {
		t.Errorf("Lights.Confirmation = %q, want ack", cfg.Lights.Confirmation)
	}
	if got := cfg.GetAckTimeout(); got != 1500*time.Millisecond {
		t.Errorf("GetAckTimeout() = %v", got)
	}
	// Untouched sections keep their defaults.
	if cfg.Lights.FanoutBuffer != 64 {
		t.Errorf("Lights.FanoutBuffer = %d, want default 64", cfg.Lights.FanoutBuffer)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MQTT.Namespace != "prysmalight" {
		t.Errorf("MQTT.Namespace = %q, want prysmalight", cfg.MQTT.Namespace)
	}
	if cfg.Lights.Confirmation != ConfirmOptimistic {
		t.Errorf("Lights.Confirmation = %q, want optimistic", cfg.Lights.Confirmation)
	}
	if cfg.API.Port != 4001 {
		t.Errorf("API.Port = %d, want 4001", cfg.API.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "invalid: [yaml: content")); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PRYSMA_MQTT_HOST", "env-broker")
	t.Setenv("PRYSMA_MQTT_PORT", "2883")
	t.Setenv("PRYSMA_MQTT_NAMESPACE", "envns")
	t.Setenv("PRYSMA_DATABASE_PATH", "/tmp/env.db")
	t.Setenv("PRYSMA_LIGHTS_CONFIRMATION", "ack")

	cfg, err := Load(writeConfig(t, "mqtt:\n  broker:\n    host: file-broker\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MQTT.Broker.Host != "env-broker" {
		t.Errorf("MQTT.Broker.Host = %q, want env-broker", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 2883 {
		t.Errorf("MQTT.Broker.Port = %d, want 2883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Namespace != "envns" {
		t.Errorf("MQTT.Namespace = %q, want envns", cfg.MQTT.Namespace)
	}
	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Lights.Confirmation != ConfirmAck {
		t.Errorf("Lights.Confirmation = %q", cfg.Lights.Confirmation)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "namespace with wildcard",
			mutate:  func(c *Config) { c.MQTT.Namespace = "lights/#" },
			wantErr: "mqtt.namespace",
		},
		{
			name:    "unknown confirmation mode",
			mutate:  func(c *Config) { c.Lights.Confirmation = "eventually" },
			wantErr: "lights.confirmation",
		},
		{
			name: "ack mode without timeout",
			mutate: func(c *Config) {
				c.Lights.Confirmation = ConfirmAck
				c.Lights.AckTimeout = 0
			},
			wantErr: "lights.ack_timeout",
		},
		{
			name:    "zero fanout buffer",
			mutate:  func(c *Config) { c.Lights.FanoutBuffer = 0 },
			wantErr: "lights.fanout_buffer",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: "security.jwt.secret",
		},
		{
			name:    "influx enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.Path = ""
	cfg.API.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	if !strings.Contains(err.Error(), "database.path") || !strings.Contains(err.Error(), "api.port") {
		t.Errorf("Validate() = %v, want both problems reported", err)
	}
}
