package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete application configuration. Values come from an
// optional YAML file; fields the file leaves empty fall back to REQKEY_*
// environment variables, then to built-in defaults.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Store  StoreConfig  `yaml:"store"`
	Auth   AuthConfig   `yaml:"auth"`
	Keys   KeysConfig   `yaml:"keys"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	IdleTimeout     string `yaml:"idle_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// LogConfig holds logger settings. File enables a size-rotated sink next to
// stdout.
type LogConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// StoreConfig selects the seen-set backend. With backend postgres an empty
// DSN means the POSTGRES_* variables assemble the connection string.
type StoreConfig struct {
	Backend string `yaml:"backend"` // memory or postgres
	DSN     string `yaml:"dsn"`
}

// AuthConfig carries the static API token.
type AuthConfig struct {
	Token string `yaml:"token"`
}

// KeysConfig tunes identity derivation. RequestIDLength zero keeps the
// built-in default.
type KeysConfig struct {
	RequestIDLength int `yaml:"request_id_length"`
	EventBuffer     int `yaml:"event_buffer"`
}

// Load reads and parses the YAML configuration file. An empty path skips the
// file and builds the configuration from environment variables and defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		// Expand ${VAR} references so secrets stay out of the file.
		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnv fills fields the file left empty from environment variables.
func (c *Config) applyEnv() {
	if c.Server.Addr == "" {
		c.Server.Addr = os.Getenv("REQKEY_ADDR")
	}
	if c.Log.Level == "" {
		c.Log.Level = os.Getenv("REQKEY_LOG_LEVEL")
	}
	if c.Log.Format == "" {
		c.Log.Format = os.Getenv("REQKEY_LOG_FORMAT")
	}
	if c.Log.File == "" {
		c.Log.File = os.Getenv("REQKEY_LOG_FILE")
	}
	if c.Store.Backend == "" {
		c.Store.Backend = os.Getenv("REQKEY_STORE")
	}
	if c.Store.DSN == "" {
		c.Store.DSN = os.Getenv("REQKEY_POSTGRES_DSN")
	}
	if c.Auth.Token == "" {
		c.Auth.Token = os.Getenv("REQKEY_API_TOKEN")
	}
	if c.Keys.RequestIDLength == 0 {
		c.Keys.RequestIDLength = getEnvAsInt("REQKEY_ID_LENGTH", 0)
	}
	if c.Keys.EventBuffer == 0 {
		c.Keys.EventBuffer = getEnvAsInt("REQKEY_EVENT_BUFFER", 0)
	}
}

// applyDefaults sets default values for unspecified configuration options.
func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":9090"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "5s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "10s"
	}
	if c.Server.IdleTimeout == "" {
		c.Server.IdleTimeout = "120s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "30s"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 50
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 28
	}

	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
}

// Validate checks the configuration for valid values.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got: %s", c.Log.Level)
	}

	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got: %s", c.Log.Format)
	}

	if c.Store.Backend != "memory" && c.Store.Backend != "postgres" {
		return fmt.Errorf("store.backend must be memory or postgres, got: %s", c.Store.Backend)
	}

	if c.Keys.RequestIDLength < 0 {
		return fmt.Errorf("keys.request_id_length must not be negative, got: %d", c.Keys.RequestIDLength)
	}
	if c.Keys.EventBuffer < 0 {
		return fmt.Errorf("keys.event_buffer must not be negative, got: %d", c.Keys.EventBuffer)
	}

	durations := map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.idle_timeout":     c.Server.IdleTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
	}
	for name, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	return nil
}

// getEnvAsInt retrieves an environment variable as an integer or returns a
// default.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
