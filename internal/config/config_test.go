package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadEmptyPathGivesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.Server.Port != DefaultPort || cfg.Server.MaxSessions != DefaultMaxSessions {
		t.Fatalf("unexpected defaults: %+v", cfg.Server)
	}
	if cfg.Grace() != 5*time.Second || cfg.IdleTimeout() != 0 {
		t.Fatalf("grace = %s, idle = %s", cfg.Grace(), cfg.IdleTimeout())
	}
	if cfg.Address() != "0.0.0.0:42069" {
		t.Fatalf("address = %s", cfg.Address())
	}
}

func TestLoadOverridesOnlyGivenKeys(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 5000
  idle_timeout: 30s
data:
  dir: /var/lib/bomber
nats:
  url: nats://localhost:4222
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 5000 || cfg.Data.Dir != "/var/lib/bomber" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Server.MaxMessageSize != DefaultMaxMessageSize || cfg.Nats.Subject != DefaultNatsSubject {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if cfg.IdleTimeout() != 30*time.Second {
		t.Fatalf("idle = %s", cfg.IdleTimeout())
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "server:\n  prot: 5000\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"no sessions", func(c *Config) { c.Server.MaxSessions = 0 }},
		{"tiny messages", func(c *Config) { c.Server.MaxMessageSize = 10 }},
		{"empty data dir", func(c *Config) { c.Data.Dir = "" }},
		{"bad grace", func(c *Config) { c.Shutdown.Grace = "soon" }},
		{"negative idle", func(c *Config) { c.Server.IdleTimeout = "-1s" }},
		{"consul without health", func(c *Config) { c.Consul.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
