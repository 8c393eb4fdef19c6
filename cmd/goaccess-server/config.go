package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	goAccess "github.com/MrEthical07/goAccess"
	"gopkg.in/yaml.v3"
)

// serverConfig is the on-disk configuration of the demo server. Fields
// missing from the file keep their defaults.
type serverConfig struct {
	Listen string `yaml:"listen"`
	// Database is a sqlstore URL (postgres://... or sqlite:...). "memory"
	// selects the in-process map store.
	Database     string          `yaml:"database"`
	Redis        redisConfig     `yaml:"redis"`
	SeedPassword string          `yaml:"seed_password"`
	LogLevel     string          `yaml:"log_level"`
	RateLimit    rateLimitConfig `yaml:"auth_rate_limit"`
	Sweeper      bool            `yaml:"sweeper"`
	// AuditJSON also writes audit events to stdout as JSON lines. Events
	// reach the log only when engine.audit.enabled is set.
	AuditJSON bool            `yaml:"audit_json"`
	Engine    goAccess.Config `yaml:"engine"`
}

// redisConfig points at the Redis holding sessions and codes. An empty
// address starts an in-process miniredis.
type redisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// rateLimitConfig bounds requests per client IP on the unauthenticated
// routes.
type rateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

func defaultServerConfig() serverConfig {
	engine := goAccess.DefaultConfig()
	engine.Metrics.Enabled = true
	engine.Metrics.EnableLatencyHistograms = true

	return serverConfig{
		Listen:       ":8080",
		Database:     "sqlite::memory:",
		SeedPassword: "Password123!",
		LogLevel:     "INFO",
		RateLimit: rateLimitConfig{
			PerSecond: 5,
			Burst:     10,
		},
		Sweeper: true,
		Engine:  engine,
	}
}

// loadConfig reads path over the defaults. An empty path returns the
// defaults unchanged.
func loadConfig(path string) (serverConfig, error) {
	cfg := defaultServerConfig()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := decodeConfig(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func decodeConfig(data []byte, cfg *serverConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c serverConfig) validate() error {
	if c.Listen == "" {
		return errors.New("listen address is required")
	}
	if c.Database == "" {
		return errors.New("database is required")
	}
	if c.RateLimit.PerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("auth_rate_limit per_second and burst must be > 0")
	}
	if c.SeedPassword != "" && len(c.SeedPassword) < c.Engine.Password.MinLength {
		return fmt.Errorf("seed_password must be at least %d bytes", c.Engine.Password.MinLength)
	}
	return c.Engine.Validate()
}
