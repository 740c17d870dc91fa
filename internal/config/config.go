// Package config loads and persists the pimesh daemon's configuration
// using koanf/v2, layering compiled-in defaults, an optional config.json
// file, and PI_MESH_ environment overrides (spec.md §6, §10).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	koanfjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds the complete pimesh daemon configuration (spec.md §6
// "Configuration defaults").
type Config struct {
	Port                int             `koanf:"port"`
	Peers               []string        `koanf:"peers"`
	AutoShutdownTimeout time.Duration   `koanf:"auto_shutdown_timeout"`
	HeartbeatInterval   time.Duration   `koanf:"heartbeat_interval"`
	MaxFrameBytes       int             `koanf:"max_frame_bytes"`
	RateLimit           RateLimitConfig `koanf:"rate_limit"`
	ReconnectAttempts   int             `koanf:"reconnect_attempts"`
	ReconnectDelay      time.Duration   `koanf:"reconnect_delay"`
	ProbeTimeout        time.Duration   `koanf:"probe_timeout"`
	Log                 LogConfig       `koanf:"log"`
}

// RateLimitConfig holds the relay rate limiter's tunables.
type RateLimitConfig struct {
	Limit  int           `koanf:"limit"`
	Window time.Duration `koanf:"window"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// DefaultConfig returns a Config populated with the spec's defaults
// (spec.md §6).
func DefaultConfig() *Config {
	return &Config{
		Port:                7433,
		Peers:               nil,
		AutoShutdownTimeout: 300 * time.Second,
		HeartbeatInterval:   15 * time.Second,
		MaxFrameBytes:       8192,
		RateLimit:           RateLimitConfig{Limit: 30, Window: 60 * time.Second},
		ReconnectAttempts:   1,
		ReconnectDelay:      3 * time.Second,
		ProbeTimeout:        300 * time.Millisecond,
		Log:                 LogConfig{Level: "info", Format: "json"},
	}
}

// envPrefix is the environment variable prefix for pimesh configuration.
// Variables are named PI_MESH_<SECTION>_<KEY>, e.g. PI_MESH_LOG_LEVEL.
const envPrefix = "PI_MESH_"

// Load reads configuration from the JSON file at path, overlays PI_MESH_
// environment variable overrides, and merges on top of DefaultConfig().
// A missing file is not an error: defaults (plus env overrides) are used
// as-is, since config.json is created lazily by the first add_peer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k, DefaultConfig()); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), koanfjson.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms PI_MESH_LOG_LEVEL -> log.level.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"port":                  defaults.Port,
		"auto_shutdown_timeout": defaults.AutoShutdownTimeout.String(),
		"heartbeat_interval":    defaults.HeartbeatInterval.String(),
		"max_frame_bytes":       defaults.MaxFrameBytes,
		"rate_limit.limit":      defaults.RateLimit.Limit,
		"rate_limit.window":     defaults.RateLimit.Window.String(),
		"reconnect_attempts":    defaults.ReconnectAttempts,
		"reconnect_delay":       defaults.ReconnectDelay.String(),
		"probe_timeout":         defaults.ProbeTimeout.String(),
		"log.level":             defaults.Log.Level,
		"log.format":            defaults.Log.Format,
	}
	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}
	return nil
}

// Validation errors.
var (
	ErrInvalidPort              = errors.New("port must be > 0")
	ErrInvalidMaxFrameBytes     = errors.New("max_frame_bytes must be > 0")
	ErrInvalidRateLimit         = errors.New("rate_limit.limit and rate_limit.window must be > 0")
	ErrInvalidAutoShutdown      = errors.New("auto_shutdown_timeout must be > 0")
	ErrInvalidHeartbeatInterval = errors.New("heartbeat_interval must be > 0")
)

// Validate checks the configuration for logical errors.
func Validate(cfg *Config) error {
	if cfg.Port <= 0 {
		return ErrInvalidPort
	}
	if cfg.MaxFrameBytes <= 0 {
		return ErrInvalidMaxFrameBytes
	}
	if cfg.RateLimit.Limit <= 0 || cfg.RateLimit.Window <= 0 {
		return ErrInvalidRateLimit
	}
	if cfg.AutoShutdownTimeout <= 0 {
		return ErrInvalidAutoShutdown
	}
	if cfg.HeartbeatInterval <= 0 {
		return ErrInvalidHeartbeatInterval
	}
	return nil
}

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// AddPeer appends hostport to config.json's peer list, creating the file
// if necessary, and is a no-op if already present (spec.md §4.D "Config
// persistence"). koanf has no structured write-back path, so persistence
// of this one mutable file uses plain encoding/json against a private
// on-disk shape, written atomically via a temp-file-then-rename.
func AddPeer(path, hostport string) error {
	return mutatePeers(path, func(peers []string) []string {
		for _, p := range peers {
			if p == hostport {
				return peers
			}
		}
		return append(peers, hostport)
	})
}

// RemovePeer removes every peer entry matching host (either a bare host or
// a host:port whose host portion matches) from config.json.
func RemovePeer(path, host string) error {
	return mutatePeers(path, func(peers []string) []string {
		out := peers[:0]
		for _, p := range peers {
			if p != host && !strings.HasPrefix(p, host+":") {
				out = append(out, p)
			}
		}
		return out
	})
}

// persistedConfig is config.json's on-disk shape: only the fields mutated
// outside of Load/DefaultConfig need round-tripping here.
type persistedConfig struct {
	Port  int      `json:"port"`
	Peers []string `json:"peers"`
}

func mutatePeers(path string, mutate func([]string) []string) error {
	pc := persistedConfig{}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &pc); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if pc.Port == 0 {
		pc.Port = DefaultConfig().Port
	}

	pc.Peers = mutate(pc.Peers)

	b, err := json.MarshalIndent(pc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmp, path, err)
	}
	return nil
}

// ConfiguredPeers reads just the peer list back out of config.json, for
// daemon startup reconnection (spec.md §4.D "Startup reconnects to every
// entry").
func ConfiguredPeers(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var pc persistedConfig
	if err := json.Unmarshal(data, &pc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return pc.Peers, nil
}
