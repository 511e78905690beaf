package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %s, want :9090", cfg.Server.Addr)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("unexpected log defaults: %+v", cfg.Log)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Store.Backend = %s, want memory", cfg.Store.Backend)
	}
	if cfg.Keys.RequestIDLength != 0 {
		t.Errorf("Keys.RequestIDLength = %d, want 0", cfg.Keys.RequestIDLength)
	}
}

func TestLoadFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	validConfig := `
server:
  addr: ":8080"
  read_timeout: 2s

log:
  level: debug

store:
  backend: postgres
  dsn: postgres://reqkey:secret@db:5432/reqkey

keys:
  request_id_length: 20
`

	if err := os.WriteFile(configPath, []byte(validConfig), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %s, want :8080", cfg.Server.Addr)
	}
	if cfg.Server.ReadTimeout != "2s" {
		t.Errorf("Server.ReadTimeout = %s, want 2s", cfg.Server.ReadTimeout)
	}
	// Verify defaults were applied to the rest
	if cfg.Server.WriteTimeout != "10s" {
		t.Errorf("Server.WriteTimeout = %s, want 10s", cfg.Server.WriteTimeout)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s, want debug", cfg.Log.Level)
	}
	if cfg.Store.Backend != "postgres" || cfg.Store.DSN == "" {
		t.Errorf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Keys.RequestIDLength != 20 {
		t.Errorf("Keys.RequestIDLength = %d, want 20", cfg.Keys.RequestIDLength)
	}
}

func TestLoadEnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_API_TOKEN", "my-secret-token")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configWithEnv := `
auth:
  token: ${TEST_API_TOKEN}
`

	if err := os.WriteFile(configPath, []byte(configWithEnv), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Auth.Token != "my-secret-token" {
		t.Errorf("Auth.Token = %s, want my-secret-token", cfg.Auth.Token)
	}
}

func TestLoadEnvFallback(t *testing.T) {
	t.Setenv("REQKEY_ADDR", ":7070")
	t.Setenv("REQKEY_ID_LENGTH", "21")
	t.Setenv("REQKEY_LOG_FORMAT", "json")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("Server.Addr = %s, want :7070", cfg.Server.Addr)
	}
	if cfg.Keys.RequestIDLength != 21 {
		t.Errorf("Keys.RequestIDLength = %d, want 21", cfg.Keys.RequestIDLength)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %s, want json", cfg.Log.Format)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"bad format", "log:\n  format: xml\n", "log.format"},
		{"bad backend", "store:\n  backend: redis\n", "store.backend"},
		{"bad duration", "server:\n  read_timeout: fast\n", "read_timeout"},
		{"negative id length", "keys:\n  request_id_length: -2\n", "request_id_length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.yaml), 0644); err != nil {
				t.Fatalf("Failed to write test config: %v", err)
			}
			_, err := Load(configPath)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
