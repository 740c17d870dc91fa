package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dantte-lp/pimesh/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Port != 7433 {
		t.Errorf("Port = %d, want %d", cfg.Port, 7433)
	}

	if cfg.AutoShutdownTimeout != 300*time.Second {
		t.Errorf("AutoShutdownTimeout = %v, want %v", cfg.AutoShutdownTimeout, 300*time.Second)
	}

	if cfg.HeartbeatInterval != 15*time.Second {
		t.Errorf("HeartbeatInterval = %v, want %v", cfg.HeartbeatInterval, 15*time.Second)
	}

	if cfg.MaxFrameBytes != 8192 {
		t.Errorf("MaxFrameBytes = %d, want %d", cfg.MaxFrameBytes, 8192)
	}

	if cfg.RateLimit.Limit != 30 || cfg.RateLimit.Window != 60*time.Second {
		t.Errorf("RateLimit = %+v, want {30 60s}", cfg.RateLimit)
	}

	if cfg.ReconnectAttempts != 1 {
		t.Errorf("ReconnectAttempts = %d, want %d", cfg.ReconnectAttempts, 1)
	}

	if cfg.ReconnectDelay != 3*time.Second {
		t.Errorf("ReconnectDelay = %v, want %v", cfg.ReconnectDelay, 3*time.Second)
	}

	if cfg.ProbeTimeout != 300*time.Millisecond {
		t.Errorf("ProbeTimeout = %v, want %v", cfg.ProbeTimeout, 300*time.Millisecond)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}

	if err := config.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadFromJSON(t *testing.T) {
	t.Parallel()

	jsonContent := `{
	"port": 9000,
	"peers": ["host-a:7433", "host-b:7433"],
	"heartbeat_interval": "5s",
	"log": {"level": "debug", "format": "text"}
}`
	path := writeTemp(t, jsonContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want %d", cfg.Port, 9000)
	}

	if len(cfg.Peers) != 2 || cfg.Peers[0] != "host-a:7433" || cfg.Peers[1] != "host-b:7433" {
		t.Errorf("Peers = %v, want [host-a:7433 host-b:7433]", cfg.Peers)
	}

	if cfg.HeartbeatInterval != 5*time.Second {
		t.Errorf("HeartbeatInterval = %v, want %v", cfg.HeartbeatInterval, 5*time.Second)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	jsonContent := `{"port": 9000}`
	path := writeTemp(t, jsonContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want %d", cfg.Port, 9000)
	}

	// Unset fields should inherit defaults.
	if cfg.MaxFrameBytes != 8192 {
		t.Errorf("MaxFrameBytes = %d, want default %d", cfg.MaxFrameBytes, 8192)
	}
	if cfg.RateLimit.Limit != 30 {
		t.Errorf("RateLimit.Limit = %d, want default %d", cfg.RateLimit.Limit, 30)
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("Load() error = %v, want nil (missing file falls back to defaults)", err)
	}

	if cfg.Port != 7433 {
		t.Errorf("Port = %d, want default %d", cfg.Port, 7433)
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr error
	}{
		{"zero port", func(c *config.Config) { c.Port = 0 }, config.ErrInvalidPort},
		{"negative port", func(c *config.Config) { c.Port = -1 }, config.ErrInvalidPort},
		{"zero max frame bytes", func(c *config.Config) { c.MaxFrameBytes = 0 }, config.ErrInvalidMaxFrameBytes},
		{"zero rate limit", func(c *config.Config) { c.RateLimit.Limit = 0 }, config.ErrInvalidRateLimit},
		{"zero rate limit window", func(c *config.Config) { c.RateLimit.Window = 0 }, config.ErrInvalidRateLimit},
		{"zero auto shutdown", func(c *config.Config) { c.AutoShutdownTimeout = 0 }, config.ErrInvalidAutoShutdown},
		{"zero heartbeat interval", func(c *config.Config) { c.HeartbeatInterval = 0 }, config.ErrInvalidHeartbeatInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.mutate(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"error", "ERROR"},
		{"bogus", "INFO"},
		{"", "INFO"},
	}

	for _, tt := range tests {
		if got := config.ParseLogLevel(tt.in).String(); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeTemp(t, `{"port": 9000}`)

	t.Setenv("PI_MESH_LOG_LEVEL", "debug")
	t.Setenv("PI_MESH_PORT", "9100")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (env override)", cfg.Log.Level, "debug")
	}

	if cfg.Port != 9100 {
		t.Errorf("Port = %d, want %d (env override)", cfg.Port, 9100)
	}
}

func TestAddPeerCreatesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")

	if err := config.AddPeer(path, "host-a:7433"); err != nil {
		t.Fatalf("AddPeer() error = %v", err)
	}

	peers, err := config.ConfiguredPeers(path)
	if err != nil {
		t.Fatalf("ConfiguredPeers() error = %v", err)
	}
	if len(peers) != 1 || peers[0] != "host-a:7433" {
		t.Errorf("ConfiguredPeers() = %v, want [host-a:7433]", peers)
	}
}

func TestAddPeerIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")

	if err := config.AddPeer(path, "host-a:7433"); err != nil {
		t.Fatalf("AddPeer() error = %v", err)
	}
	if err := config.AddPeer(path, "host-a:7433"); err != nil {
		t.Fatalf("AddPeer() second call error = %v", err)
	}

	peers, err := config.ConfiguredPeers(path)
	if err != nil {
		t.Fatalf("ConfiguredPeers() error = %v", err)
	}
	if len(peers) != 1 {
		t.Errorf("ConfiguredPeers() = %v, want exactly one entry", peers)
	}
}

func TestRemovePeer(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")

	if err := config.AddPeer(path, "host-a:7433"); err != nil {
		t.Fatalf("AddPeer() error = %v", err)
	}
	if err := config.AddPeer(path, "host-b:7433"); err != nil {
		t.Fatalf("AddPeer() error = %v", err)
	}
	if err := config.RemovePeer(path, "host-a"); err != nil {
		t.Fatalf("RemovePeer() error = %v", err)
	}

	peers, err := config.ConfiguredPeers(path)
	if err != nil {
		t.Fatalf("ConfiguredPeers() error = %v", err)
	}
	if len(peers) != 1 || peers[0] != "host-b:7433" {
		t.Errorf("ConfiguredPeers() = %v, want [host-b:7433]", peers)
	}
}

func TestConfiguredPeersMissingFile(t *testing.T) {
	t.Parallel()

	peers, err := config.ConfiguredPeers(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("ConfiguredPeers() error = %v", err)
	}
	if peers != nil {
		t.Errorf("ConfiguredPeers() = %v, want nil", peers)
	}
}

func TestAddPeerPreservesPort(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	if err := config.AddPeer(path, "host-a:7433"); err != nil {
		t.Fatalf("AddPeer() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if int(raw["port"].(float64)) != 7433 {
		t.Errorf("persisted port = %v, want %d", raw["port"], 7433)
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}
