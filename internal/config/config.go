// Package config resolves the journal-engine runtime configuration. Values
// layer in order of precedence: built-in defaults, then an optional config
// file (YAML or JSON), then environment variables. The merged result is
// validated once at the end.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration.
type Config struct {
	Server ServerConfig `json:"server" yaml:"server"`
	Store  StoreConfig  `json:"store" yaml:"store"`
	Prices PricesConfig `json:"prices" yaml:"prices"`
}

// ServerConfig contains the HTTP listener parameters.
type ServerConfig struct {
	Port int `json:"port" yaml:"port"`
}

// StoreConfig selects and parameterizes the persistence backend.
type StoreConfig struct {
	Backend         string `json:"backend" yaml:"backend"` // "sqlite", "postgres", or "memory"
	SQLitePath      string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`
	DatabaseURL     string `json:"database_url,omitempty" yaml:"database_url,omitempty"`
	RedisURL        string `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`
	CacheTTLSeconds int    `json:"cache_ttl_seconds" yaml:"cache_ttl_seconds"`
}

// PricesConfig contains price-entry screening parameters.
type PricesConfig struct {
	ConfirmThresholdPct float64 `json:"confirm_threshold_pct" yaml:"confirm_threshold_pct"`
}

// Default returns a configuration with sensible defaults: SQLite in the
// working directory, no cache, the stock confirmation threshold.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
		},
		Store: StoreConfig{
			Backend:         "sqlite",
			SQLitePath:      "./journal.db",
			CacheTTLSeconds: 30,
		},
		Prices: PricesConfig{
			ConfirmThresholdPct: 20,
		},
	}
}

// Load resolves the effective configuration. An empty path skips the file
// layer entirely.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadFile merges a config file over the current values. YAML is tried
// first, then JSON.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		if jsonErr := json.Unmarshal(data, c); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}
	return nil
}

// applyEnv overlays environment variables. JOURNAL_DB selects SQLite;
// DATABASE_URL is checked after it and selects Postgres, so when both are
// set Postgres wins.
func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("ignoring unparseable PORT", "value", v)
		} else {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("JOURNAL_DB"); v != "" {
		c.Store.Backend = "sqlite"
		c.Store.SQLitePath = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Store.Backend = "postgres"
		c.Store.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Store.RedisURL = v
	}
	if v := os.Getenv("CONFIRM_THRESHOLD"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			slog.Warn("ignoring unparseable CONFIRM_THRESHOLD", "value", v)
		} else {
			c.Prices.ConfirmThresholdPct = threshold
		}
	}
}

// SaveToFile writes the configuration to a file, choosing the format from
// the extension: .yaml/.yml is YAML, anything else indented JSON.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error
	if (len(path) > 5 && path[len(path)-5:] == ".yaml") || (len(path) > 4 && path[len(path)-4:] == ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	switch c.Store.Backend {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path required for sqlite backend")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("store.database_url required for postgres backend")
		}
	case "memory":
	default:
		return fmt.Errorf("store.backend must be 'sqlite', 'postgres', or 'memory'")
	}
	if c.Store.CacheTTLSeconds < 0 {
		return fmt.Errorf("store.cache_ttl_seconds must not be negative")
	}
	if c.Prices.ConfirmThresholdPct < 0 {
		return fmt.Errorf("prices.confirm_threshold_pct must not be negative")
	}
	return nil
}
