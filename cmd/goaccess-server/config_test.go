package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	goAccess "github.com/MrEthical07/goAccess"
	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "goaccess.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
database: memory
redis:
  addr: "127.0.0.1:6379"
  db: 2
engine:
  session:
    timeout: 45m
  jit:
    max_duration_minutes: 120
  password:
    algorithm: bcrypt
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Listen != ":9090" || cfg.Database != "memory" {
		t.Fatalf("top-level fields not applied: %+v", cfg)
	}
	if cfg.Redis.Addr != "127.0.0.1:6379" || cfg.Redis.DB != 2 {
		t.Fatalf("redis section not applied: %+v", cfg.Redis)
	}
	if cfg.Engine.Session.Timeout != 45*time.Minute {
		t.Fatalf("expected 45m session timeout, got %v", cfg.Engine.Session.Timeout)
	}
	if cfg.Engine.JIT.MaxDurationMinutes != 120 {
		t.Fatalf("expected max duration 120, got %d", cfg.Engine.JIT.MaxDurationMinutes)
	}
	if cfg.Engine.Password.Algorithm != goAccess.PasswordBcrypt {
		t.Fatalf("expected bcrypt, got %q", cfg.Engine.Password.Algorithm)
	}

	// Untouched fields keep their defaults.
	def := defaultServerConfig()
	if cfg.Engine.OneTimeCode != def.Engine.OneTimeCode {
		t.Fatalf("one-time code config changed: %+v", cfg.Engine.OneTimeCode)
	}
	if cfg.RateLimit != def.RateLimit {
		t.Fatalf("rate limit config changed: %+v", cfg.RateLimit)
	}
	if err := cfg.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadConfigRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "listen: \":9090\"\nlisten_port: 9090\n")
	if _, err := loadConfig(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadConfigEmptyFile(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Listen != defaultServerConfig().Listen {
		t.Fatalf("expected default listen address, got %q", cfg.Listen)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*serverConfig)
	}{
		{name: "no listen", mutate: func(c *serverConfig) { c.Listen = "" }},
		{name: "no database", mutate: func(c *serverConfig) { c.Database = "" }},
		{name: "zero rate", mutate: func(c *serverConfig) { c.RateLimit.PerSecond = 0 }},
		{name: "zero burst", mutate: func(c *serverConfig) { c.RateLimit.Burst = 0 }},
		{name: "short seed password", mutate: func(c *serverConfig) { c.SeedPassword = "short" }},
		{name: "bad engine config", mutate: func(c *serverConfig) { c.Engine.Session.Timeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultServerConfig()
			tt.mutate(&cfg)
			if err := cfg.validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}

	if err := defaultServerConfig().validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestParseFlagsOverrideConfigFile(t *testing.T) {
	path := writeConfig(t, "listen: \":9090\"\ndatabase: memory\nlog_level: WARNING\n")

	cfg, err := parseFlags([]string{
		"--config", path,
		"--listen", ":7070",
		"--redis-addr", "redis:6379",
	}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.Listen != ":7070" {
		t.Fatalf("flag must win over file, got %q", cfg.Listen)
	}
	if cfg.Database != "memory" || cfg.LogLevel != "WARNING" {
		t.Fatalf("unset flags must keep file values: %+v", cfg)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("expected redis override, got %q", cfg.Redis.Addr)
	}
}

func TestParseFlagsHelp(t *testing.T) {
	_, err := parseFlags([]string{"--help"}, io.Discard)
	if !errors.Is(err, pflag.ErrHelp) {
		t.Fatalf("expected pflag.ErrHelp, got %v", err)
	}
	if err := run([]string{"--help"}, io.Discard); err != nil {
		t.Fatalf("run --help: %v", err)
	}
}

func TestParseFlagsUnknownFlag(t *testing.T) {
	if _, err := parseFlags([]string{"--nope"}, io.Discard); err == nil {
		t.Fatalf("expected error for unknown flag")
	}
}
