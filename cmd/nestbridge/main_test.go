package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-nest/internal/bridges/nest"
	"github.com/nerrad567/gray-logic-nest/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-nest/internal/infrastructure/logging"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("NEST_BRIDGE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingCredentials verifies run fails before touching the
// database when the application credentials are absent.
func TestRun_MissingCredentials(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	configContent := `
site:
  id: test-site

bridge:
  id: nest-test
  poll_interval: 30

nest:
  client_id: ""
  client_secret: ""
  token_cache_file: "` + filepath.Join(tmpDir, "token.json") + `"

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "test-client"
  qos: 1

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("NEST_BRIDGE_CONFIG", configPath)
	t.Setenv("NEST_BRIDGE_CLIENT_ID", "")
	t.Setenv("NEST_BRIDGE_CLIENT_SECRET", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail without client credentials")
	}
	if _, err := os.Stat(dbPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("database created before config validation: %v", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("NEST_BRIDGE_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("NEST_BRIDGE_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

type fakePruner struct {
	olderThan time.Duration
	removed   int64
	err       error
}

func (f *fakePruner) PruneHistory(_ context.Context, olderThan time.Duration) (int64, error) {
	f.olderThan = olderThan
	return f.removed, f.err
}

type fakeStats struct {
	bridgeID string
	fields   map[string]any
}

func (f *fakeStats) WriteBridgeStats(bridgeID string, fields map[string]any) {
	f.bridgeID = bridgeID
	f.fields = fields
}

func TestMaintain(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	pruner := &fakePruner{removed: 3}
	stats := &fakeStats{}

	maintain(context.Background(), "nest-test", nest.ControllerStats{Thermostats: 2, Polls: 7, Reconnects: 1}, pruner, stats, log)

	if pruner.olderThan != historyRetention {
		t.Errorf("PruneHistory olderThan = %v, want %v", pruner.olderThan, historyRetention)
	}
	if stats.bridgeID != "nest-test" {
		t.Errorf("bridgeID = %q, want nest-test", stats.bridgeID)
	}
	if stats.fields["thermostats"] != 2 || stats.fields["polls"] != uint64(7) || stats.fields["reconnects"] != uint64(1) {
		t.Errorf("fields = %v", stats.fields)
	}
}

func TestMaintain_NilCollaborators(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	// A prune error is logged, not returned.
	pruner := &fakePruner{err: errors.New("database is locked")}
	maintain(context.Background(), "nest-test", nest.ControllerStats{}, pruner, nil, log)
	maintain(context.Background(), "nest-test", nest.ControllerStats{}, nil, nil, log)
}

var _ nest.MQTTClient = (*mqttBridgeAdapter)(nil)
