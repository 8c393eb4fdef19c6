package password

import (
	"errors"
	"strings"
	"testing"
)

// fastConfig keeps every parameter at its floor so tests stay quick.
func fastConfig() Config {
	return Config{
		Memory:      minMemoryKB,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newArgon2(t *testing.T, cfg Config) *Argon2 {
	t.Helper()
	h, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	return h
}

func TestArgon2RoundTrip(t *testing.T) {
	h := newArgon2(t, fastConfig())

	hash, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	other, _ := h.Hash("correct horse")
	if other == hash {
		t.Fatal("expected a fresh salt per hash")
	}

	tests := []struct {
		password string
		want     bool
	}{
		{"correct horse", true},
		{"correct horsE", false},
		{"correct horse ", false},
	}
	for _, tt := range tests {
		ok, err := h.Verify(tt.password, hash)
		if err != nil {
			t.Fatalf("Verify(%q) failed: %v", tt.password, err)
		}
		if ok != tt.want {
			t.Fatalf("Verify(%q) = %v, want %v", tt.password, ok, tt.want)
		}
	}
}

func TestArgon2NeedsUpgrade(t *testing.T) {
	current := fastConfig()
	current.Time = 2
	h := newArgon2(t, current)

	tests := []struct {
		name string
		mut  func(*Config)
		want bool
	}{
		{"same parameters", func(*Config) {}, false},
		{"lower time", func(c *Config) { c.Time = 1 }, true},
		{"higher time", func(c *Config) { c.Time = 3 }, false},
		{"shorter key", func(c *Config) { c.KeyLength = 16 }, true},
	}
	for _, tt := range tests {
		cfg := current
		tt.mut(&cfg)
		hash, err := newArgon2(t, cfg).Hash("upgrade-me")
		if err != nil {
			t.Fatalf("%s: Hash failed: %v", tt.name, err)
		}
		got, err := h.NeedsUpgrade(hash)
		if err != nil {
			t.Fatalf("%s: NeedsUpgrade failed: %v", tt.name, err)
		}
		if got != tt.want {
			t.Fatalf("%s: NeedsUpgrade = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestArgon2RejectsMalformedHashes(t *testing.T) {
	h := newArgon2(t, fastConfig())
	valid, err := h.Hash("malformed-base")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	parts := strings.Split(valid, "$")
	salt, key := parts[4], parts[5]

	tests := map[string]string{
		"not phc":         "not-a-phc-hash",
		"bcrypt":          "$2a$10$abcdefghijklmnopqrstuv",
		"wrong version":   strings.Replace(valid, "$v=19$", "$v=18$", 1),
		"argon2i":         strings.Replace(valid, "$argon2id$", "$argon2i$", 1),
		"duplicate param": "$argon2id$v=19$m=8192,m=8192,p=1$" + salt + "$" + key,
		"unknown param":   "$argon2id$v=19$m=8192,t=1,p=1,x=2$" + salt + "$" + key,
		"missing param":   "$argon2id$v=19$m=8192,t=1$" + salt + "$" + key,
		"weak memory":     "$argon2id$v=19$m=64,t=1,p=1$" + salt + "$" + key,
		"short salt":      "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA==$" + key,
		"empty key":       "$argon2id$v=19$m=8192,t=1,p=1$" + salt + "$",
	}
	for name, encoded := range tests {
		if _, err := h.Verify("malformed-base", encoded); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("%s: expected ErrMalformedHash from Verify, got %v", name, err)
		}
		if _, err := h.NeedsUpgrade(encoded); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("%s: expected ErrMalformedHash from NeedsUpgrade, got %v", name, err)
		}
	}
}

func TestArgon2PasswordLengthBounds(t *testing.T) {
	capped := fastConfig()
	capped.MaxPasswordBytes = 64

	tests := []struct {
		name     string
		cfg      Config
		password string
		want     error
	}{
		{"empty", fastConfig(), "", ErrPasswordTooShort},
		{"seven bytes", fastConfig(), "1234567", ErrPasswordTooShort},
		{"eight bytes", fastConfig(), "12345678", nil},
		{"at cap", capped, strings.Repeat("b", 64), nil},
		{"over cap", capped, strings.Repeat("a", 65), ErrPasswordTooLong},
		{"default cap", fastConfig(), strings.Repeat("e", DefaultMaxPasswordBytes), nil},
		{"over default cap", fastConfig(), strings.Repeat("d", DefaultMaxPasswordBytes+1), ErrPasswordTooLong},
	}
	for _, tt := range tests {
		_, err := newArgon2(t, tt.cfg).Hash(tt.password)
		if !errors.Is(err, tt.want) {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
}

func TestArgon2VerifyRejectsOverlongInput(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxPasswordBytes = 64
	h := newArgon2(t, cfg)

	hash, err := h.Hash("valid-password-123")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if _, err := h.Verify(strings.Repeat("c", 65), hash); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestArgon2ConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"memory", func(c *Config) { c.Memory = 1024 }},
		{"time", func(c *Config) { c.Time = 0 }},
		{"parallelism", func(c *Config) { c.Parallelism = 0 }},
		{"salt", func(c *Config) { c.SaltLength = 8 }},
		{"key", func(c *Config) { c.KeyLength = 8 }},
		{"negative cap", func(c *Config) { c.MaxPasswordBytes = -1 }},
		{"cap under minimum", func(c *Config) { c.MaxPasswordBytes = 4 }},
	}
	for _, tt := range tests {
		cfg := fastConfig()
		tt.mut(&cfg)
		if _, err := NewArgon2(cfg); err == nil {
			t.Fatalf("%s: expected config error", tt.name)
		}
	}

	if _, err := NewArgon2(DefaultConfig()); err != nil {
		t.Fatalf("DefaultConfig rejected: %v", err)
	}
}
