package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prysmalight/prysma-core/internal/auth"
	"github.com/prysmalight/prysma-core/internal/infrastructure/config"
	"github.com/prysmalight/prysma-core/internal/infrastructure/logging"
	"github.com/prysmalight/prysma-core/internal/light"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("PRYSMA_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_InvalidConfirmation verifies config validation stops startup.
func TestRun_InvalidConfirmation(t *testing.T) {
	t.Setenv("PRYSMA_CONFIG", writeTestConfig(t, `
database:
  path: "`+filepath.Join(t.TempDir(), "test.db")+`"
lights:
  confirmation: "eventually"
`))

	err := run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "lights.confirmation") {
		t.Fatalf("run() error = %v, want confirmation validation error", err)
	}
}

// TestRun_StartsWithoutBroker verifies an unreachable broker is not fatal.
// The API binds a fixed port; skip when it is taken.
func TestRun_StartsWithoutBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the MQTT connect timeout")
	}

	dir := t.TempDir()
	t.Setenv("PRYSMA_CONFIG", writeTestConfig(t, `
database:
  path: "`+filepath.Join(dir, "test.db")+`"
mqtt:
  broker:
    host: "127.0.0.1"
    port: 19999
    client_id: "prysma-test"
  reconnect:
    connect_timeout: 1
api:
  host: "127.0.0.1"
  port: 18471
logging:
  level: error
  format: text
`))

	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
	defer cancel()

	err := run(ctx)
	if err != nil && strings.Contains(err.Error(), "address already in use") {
		t.Skipf("API port busy: %v", err)
	}
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "test.db")); statErr != nil {
		t.Errorf("database file not created: %v", statErr)
	}
}

func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("PRYSMA_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	t.Setenv("PRYSMA_CONFIG", "/etc/prysma/config.yaml")
	if got := getConfigPath(); got != "/etc/prysma/config.yaml" {
		t.Errorf("getConfigPath() = %q", got)
	}
}

func TestRunToken(t *testing.T) {
	t.Setenv("PRYSMA_CONFIG", writeTestConfig(t, `
security:
  jwt:
    secret: "`+testSecret+`"
    issuer: "prysma-test"
`))

	var out bytes.Buffer
	if err := runToken([]string{"-sub", "hallway-panel", "-role", "operator", "-ttl", "1h"}, &out); err != nil {
		t.Fatalf("runToken() error = %v", err)
	}

	claims, err := auth.ParseToken(strings.TrimSpace(out.String()), testSecret, "prysma-test")
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "hallway-panel" || claims.Role != auth.RoleOperator {
		t.Errorf("claims = %+v", claims)
	}
}

func TestRunToken_Errors(t *testing.T) {
	withSecret := writeTestConfig(t, `
security:
  jwt:
    secret: "`+testSecret+`"
`)
	withoutSecret := writeTestConfig(t, "logging:\n  level: info\n")

	tests := []struct {
		name   string
		config string
		args   []string
	}{
		{"missing subject", withSecret, []string{"-role", "admin"}},
		{"unknown role", withSecret, []string{"-sub", "x", "-role", "root"}},
		{"auth disabled", withoutSecret, []string{"-sub", "x"}},
		{"bad flag", withSecret, []string{"-nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PRYSMA_CONFIG", tt.config)
			var out bytes.Buffer
			if err := runToken(tt.args, &out); err == nil {
				t.Errorf("runToken(%v) should fail, printed %q", tt.args, out.String())
			}
		})
	}
}

type countingHistory struct {
	light.HistoryRepository
	calls     atomic.Int32
	olderThan atomic.Int64
	err       error
}

func (h *countingHistory) PruneHistory(_ context.Context, olderThan time.Duration) (int64, error) {
	h.calls.Add(1)
	h.olderThan.Store(int64(olderThan))
	return 3, h.err
}

func TestPruneHistoryLoop_PrunesAtStartup(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	for _, pruneErr := range []error{nil, errors.New("disk full")} {
		h := &countingHistory{err: pruneErr}
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan struct{})
		go func() {
			pruneHistoryLoop(ctx, h, 48*time.Hour, log)
			close(done)
		}()

		deadline := time.After(2 * time.Second)
		for h.calls.Load() == 0 {
			select {
			case <-deadline:
				t.Fatal("PruneHistory was not called at startup")
			case <-time.After(5 * time.Millisecond):
			}
		}
		cancel()
		<-done

		if got := time.Duration(h.olderThan.Load()); got != 48*time.Hour {
			t.Errorf("olderThan = %v, want 48h", got)
		}
	}
}
