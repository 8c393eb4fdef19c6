package goAccess

import (
	"errors"
	"time"

	"github.com/MrEthical07/goAccess/permission"
)

// Config holds every tunable of the [Engine]. Start from [DefaultConfig] and
// override what you need; zero values are not defaults.
type Config struct {
	Session      SessionConfig      `yaml:"session"`
	OneTimeCode  OneTimeCodeConfig  `yaml:"one_time_code"`
	JIT          JITConfig          `yaml:"jit"`
	Password     PasswordConfig     `yaml:"password"`
	Registration RegistrationConfig `yaml:"registration"`
	Security     SecurityConfig     `yaml:"security"`
	Audit        AuditConfig        `yaml:"audit"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls opaque session tokens.
type SessionConfig struct {
	// Timeout is the absolute session lifetime.
	Timeout time.Duration `yaml:"timeout"`
	// RetainInactive keeps deactivated records around for inspection.
	RetainInactive time.Duration `yaml:"retain_inactive"`
}

/*
====================================
ONE-TIME CODE CONFIG
====================================
*/

// OneTimeCodeConfig controls e-mail verification and 2FA codes.
type OneTimeCodeConfig struct {
	Length int           `yaml:"length"`
	TTL    time.Duration `yaml:"ttl"`
	// MaxAttempts wrong guesses burn a code; the user must request a new one.
	MaxAttempts int `yaml:"max_attempts"`
}

/*
====================================
JIT CONFIG
====================================
*/

// JITConfig controls temporary access grants.
type JITConfig struct {
	DefaultDurationMinutes int `yaml:"default_duration_minutes"`
	// MaxDurationMinutes caps requested durations. Zero leaves them uncapped.
	MaxDurationMinutes int           `yaml:"max_duration_minutes"`
	SweepInterval      time.Duration `yaml:"sweep_interval"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordAlgorithm selects the password hasher.
type PasswordAlgorithm string

const (
	PasswordArgon2id PasswordAlgorithm = "argon2id"
	PasswordBcrypt   PasswordAlgorithm = "bcrypt"
)

// PasswordConfig controls hashing and the minimum password length.
type PasswordConfig struct {
	Algorithm   PasswordAlgorithm `yaml:"algorithm"`
	MinLength   int               `yaml:"min_length"`
	Memory      uint32            `yaml:"memory"` // in KB
	Time        uint32            `yaml:"time"`
	Parallelism uint8             `yaml:"parallelism"`
	SaltLength  uint32            `yaml:"salt_length"`
	KeyLength   uint32            `yaml:"key_length"`
	BcryptCost  int               `yaml:"bcrypt_cost"`
	// UpgradeOnLogin rehashes a verified password whose stored hash was
	// produced with weaker parameters than the current ones.
	UpgradeOnLogin bool `yaml:"upgrade_on_login"`
}

/*
====================================
REGISTRATION CONFIG
====================================
*/

// RegistrationConfig controls self-service sign-up.
type RegistrationConfig struct {
	// DefaultRole is assigned to every new account. It must name an
	// organizational role in the catalog, or be empty.
	DefaultRole string `yaml:"default_role"`
	// RequireEmailVerification withholds login until the address is
	// confirmed with a code.
	RequireEmailVerification bool `yaml:"require_email_verification"`
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls password-attempt throttling.
type SecurityConfig struct {
	MaxLoginAttempts int           `yaml:"max_login_attempts"`
	LoginCooldown    time.Duration `yaml:"login_cooldown"`
	EnableIPThrottle bool          `yaml:"enable_ip_throttle"`
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			Timeout:        30 * time.Minute,
			RetainInactive: 24 * time.Hour,
		},
		OneTimeCode: OneTimeCodeConfig{
			Length:      6,
			TTL:         10 * time.Minute,
			MaxAttempts: 5,
		},
		JIT: JITConfig{
			DefaultDurationMinutes: 15,
			MaxDurationMinutes:     0,
			SweepInterval:          5 * time.Minute,
		},
		Password: PasswordConfig{
			Algorithm:   PasswordArgon2id,
			MinLength:   8,
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			BcryptCost:  10,

			UpgradeOnLogin: true,
		},
		Registration: RegistrationConfig{
			DefaultRole:              permission.RoleUser,
			RequireEmailVerification: true,
		},
		Security: SecurityConfig{
			MaxLoginAttempts: 5,
			LoginCooldown:    15 * time.Minute,
			EnableIPThrottle: false,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	if c.Session.Timeout <= 0 {
		return errors.New("Session Timeout must be > 0")
	}
	if c.Session.RetainInactive < 0 {
		return errors.New("Session RetainInactive must be >= 0")
	}

	if c.OneTimeCode.Length < 4 || c.OneTimeCode.Length > 10 {
		return errors.New("OneTimeCode Length must be between 4 and 10")
	}
	if c.OneTimeCode.TTL <= 0 {
		return errors.New("OneTimeCode TTL must be > 0")
	}
	if c.OneTimeCode.MaxAttempts <= 0 {
		return errors.New("OneTimeCode MaxAttempts must be > 0")
	}

	if c.JIT.DefaultDurationMinutes <= 0 {
		return errors.New("JIT DefaultDurationMinutes must be > 0")
	}
	if c.JIT.MaxDurationMinutes < 0 {
		return errors.New("JIT MaxDurationMinutes must be >= 0")
	}
	if c.JIT.MaxDurationMinutes > 0 && c.JIT.MaxDurationMinutes < c.JIT.DefaultDurationMinutes {
		return errors.New("JIT MaxDurationMinutes must be >= DefaultDurationMinutes")
	}
	if c.JIT.SweepInterval <= 0 {
		return errors.New("JIT SweepInterval must be > 0")
	}

	switch c.Password.Algorithm {
	case PasswordArgon2id, PasswordBcrypt:
	default:
		return errors.New("unsupported Password Algorithm")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}

	if c.Security.MaxLoginAttempts <= 0 {
		return errors.New("Security MaxLoginAttempts must be > 0")
	}
	if c.Security.LoginCooldown <= 0 {
		return errors.New("Security LoginCooldown must be > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
