package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	// MinPasswordBytes is the shortest password any hasher accepts.
	MinPasswordBytes = 8
	// DefaultMaxPasswordBytes caps input when Config.MaxPasswordBytes is zero.
	DefaultMaxPasswordBytes = 1024
)

// Lower bounds for Argon2id parameters, both when configuring a hasher and
// when accepting a stored hash.
const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
)

const phcAlgorithm = "argon2id"

var (
	// ErrPasswordTooShort is returned for passwords under MinPasswordBytes.
	ErrPasswordTooShort = errors.New("password must be at least 8 bytes")
	// ErrPasswordTooLong is returned for passwords over the configured cap.
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
	// ErrMalformedHash is returned when a stored hash cannot be parsed.
	ErrMalformedHash = errors.New("malformed password hash")
)

// Hasher hashes and verifies passwords. Hashes are self-describing, so
// NeedsUpgrade can tell a hash made with older parameters.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Config holds Argon2id cost parameters.
type Config struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// MaxPasswordBytes bounds hashing cost for hostile input. Zero means
	// DefaultMaxPasswordBytes.
	MaxPasswordBytes int
}

// DefaultConfig returns the recommended Argon2id parameters.
func DefaultConfig() Config {
	return Config{
		Memory:           64 * 1024,
		Time:             3,
		Parallelism:      2,
		SaltLength:       16,
		KeyLength:        32,
		MaxPasswordBytes: DefaultMaxPasswordBytes,
	}
}

func (c Config) validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return fmt.Errorf("password memory must be >= %d KB", minMemoryKB)
	case c.Time < minTimeCost:
		return errors.New("password time must be >= 1")
	case c.Parallelism < minParallelism:
		return errors.New("password parallelism must be >= 1")
	case c.SaltLength < minSaltLength:
		return fmt.Errorf("password salt length must be >= %d", minSaltLength)
	case c.KeyLength < minKeyLength:
		return fmt.Errorf("password key length must be >= %d", minKeyLength)
	case c.MaxPasswordBytes < 0, c.MaxPasswordBytes > 0 && c.MaxPasswordBytes < MinPasswordBytes:
		return fmt.Errorf("password max bytes must be 0 or >= %d", MinPasswordBytes)
	}
	return nil
}

// Argon2 is the default [Hasher]. Hashes use the PHC string format:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>
type Argon2 struct {
	config Config
}

var _ Hasher = (*Argon2)(nil)

// NewArgon2 validates cfg and returns an [Argon2] hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	return &Argon2{config: cfg}, nil
}

// Hash returns a PHC-encoded Argon2id hash of password. The password bytes
// are used as given, without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if err := checkLength(password, a.config.MaxPasswordBytes); err != nil {
		return "", err
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	p := phc{
		memory:      a.config.Memory,
		time:        a.config.Time,
		parallelism: a.config.Parallelism,
		salt:        salt,
	}
	p.key = p.derive(password, a.config.KeyLength)
	return p.String(), nil
}

// Verify reports whether password matches encodedHash. A malformed hash is
// an error, a mismatch is not.
func (a *Argon2) Verify(password, encodedHash string) (bool, error) {
	if len(password) > a.config.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}

	p, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed := p.derive(password, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(computed, p.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced with weaker
// parameters than the hasher's, or with a different key length.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	p, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	weaker := p.memory < a.config.Memory ||
		p.time < a.config.Time ||
		p.parallelism < a.config.Parallelism
	return weaker || uint32(len(p.key)) != a.config.KeyLength, nil
}

// phc is a decoded Argon2id hash string.
type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (p phc) derive(password string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, keyLen)
}

func (p phc) String() string {
	b64 := base64.StdEncoding
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcAlgorithm, argon2.Version,
		p.memory, p.time, p.parallelism,
		b64.EncodeToString(p.salt), b64.EncodeToString(p.key))
}

func parsePHC(encoded string) (phc, error) {
	var p phc

	// "", algorithm, version, params, salt, key
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return p, fmt.Errorf("%w: expected 5 PHC fields", ErrMalformedHash)
	}
	if fields[1] != phcAlgorithm {
		return p, fmt.Errorf("%w: unsupported algorithm %q", ErrMalformedHash, fields[1])
	}

	v, ok := strings.CutPrefix(fields[2], "v=")
	if !ok {
		return p, fmt.Errorf("%w: missing version", ErrMalformedHash)
	}
	if version, err := strconv.Atoi(v); err != nil || version != argon2.Version {
		return p, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, v)
	}

	if err := p.parseParams(fields[3]); err != nil {
		return p, err
	}

	var err error
	if p.salt, err = base64.StdEncoding.DecodeString(fields[4]); err != nil || len(p.salt) < int(minSaltLength) {
		return p, fmt.Errorf("%w: bad salt", ErrMalformedHash)
	}
	if p.key, err = base64.StdEncoding.DecodeString(fields[5]); err != nil || len(p.key) == 0 {
		return p, fmt.Errorf("%w: bad key", ErrMalformedHash)
	}
	return p, nil
}

// parseParams reads "m=..,t=..,p=..". Each key must appear exactly once.
func (p *phc) parseParams(s string) error {
	seen := map[string]bool{}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || seen[k] {
			return fmt.Errorf("%w: bad parameter %q", ErrMalformedHash, pair)
		}
		seen[k] = true

		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || uint32(n) < minMemoryKB {
				return fmt.Errorf("%w: bad memory %q", ErrMalformedHash, v)
			}
			p.memory = uint32(n)
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || uint32(n) < minTimeCost {
				return fmt.Errorf("%w: bad time %q", ErrMalformedHash, v)
			}
			p.time = uint32(n)
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil || uint8(n) < minParallelism {
				return fmt.Errorf("%w: bad parallelism %q", ErrMalformedHash, v)
			}
			p.parallelism = uint8(n)
		default:
			return fmt.Errorf("%w: unknown parameter %q", ErrMalformedHash, k)
		}
	}
	if len(seen) != 3 {
		return fmt.Errorf("%w: missing parameters", ErrMalformedHash)
	}
	return nil
}

func checkLength(password string, max int) error {
	if len(password) < MinPasswordBytes {
		return ErrPasswordTooShort
	}
	if len(password) > max {
		return ErrPasswordTooLong
	}
	return nil
}
