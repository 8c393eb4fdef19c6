// Package otp issues and consumes single-use numeric codes for e-mail
// verification and second-factor login.
//
// Codes are stored as Redis hashes keyed by (purpose, subject). Issuing a
// code overwrites the previous one, so only the newest code for a purpose is
// ever accepted. Consumption runs as one Lua script, so two concurrent
// validations of the same code cannot both succeed.
package otp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goAccess/internal"
	"github.com/juju/clock"
	"github.com/redis/go-redis/v9"
)

// Purpose scopes a code to one ceremony.
type Purpose string

const (
	EmailVerification Purpose = "EMAIL_VERIFICATION"
	TwoFactor         Purpose = "TWO_FACTOR"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == EmailVerification || p == TwoFactor
}

var (
	// ErrRedisUnavailable wraps Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrInvalidPurpose is returned for an unknown [Purpose].
	ErrInvalidPurpose = errors.New("invalid code purpose")
)

const keyPrefix = "otp"

// Config controls code shape and lifetime.
type Config struct {
	Length int
	TTL    time.Duration
	// MaxAttempts is the number of wrong guesses that burns a code.
	MaxAttempts int
}

// DefaultConfig returns 6-digit codes valid for 10 minutes that survive four
// wrong guesses.
func DefaultConfig() Config {
	return Config{
		Length:      6,
		TTL:         10 * time.Minute,
		MaxAttempts: 5,
	}
}

// Outcome is the detailed result of a validation attempt.
type Outcome uint8

const (
	OutcomeMissing Outcome = iota
	OutcomeAccepted
	OutcomeMismatch
	OutcomeExpired
	// OutcomeAttemptsExceeded is the wrong guess that used up the code's
	// attempt budget. The code is burned.
	OutcomeAttemptsExceeded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeMismatch:
		return "mismatch"
	case OutcomeExpired:
		return "expired"
	case OutcomeAttemptsExceeded:
		return "attempts_exceeded"
	default:
		return "missing"
	}
}

// consumeScript returns 0 missing or used, 1 accepted, 2 mismatch,
// 3 expired, 4 mismatch that exhausted the attempts (ARGV[3]).
const consumeScript = `
local rec = redis.call("HMGET", KEYS[1], "hash", "expires", "used")
if not rec[1] or rec[3] == "1" then
  return 0
end
if rec[1] ~= ARGV[1] then
  local n = redis.call("HINCRBY", KEYS[1], "attempts", 1)
  if n >= tonumber(ARGV[3]) then
    redis.call("HSET", KEYS[1], "used", "1")
    return 4
  end
  return 2
end
if tonumber(ARGV[2]) > tonumber(rec[2]) then
  return 3
end
redis.call("HSET", KEYS[1], "used", "1")
return 1
`

var consumeLua = redis.NewScript(consumeScript)

// Manager issues and validates codes.
type Manager struct {
	redis  redis.UniversalClient
	config Config
	clock  clock.Clock
}

// NewManager creates a [Manager]. Zero config fields take their defaults and
// a nil clock means wall time.
func NewManager(rdb redis.UniversalClient, cfg Config, clk clock.Clock) *Manager {
	def := DefaultConfig()
	if cfg.Length <= 0 {
		cfg.Length = def.Length
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Manager{redis: rdb, config: cfg, clock: clk}
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.config
}

func (m *Manager) key(subjectID string, purpose Purpose) string {
	return keyPrefix + ":" + string(purpose) + ":" + subjectID
}

func codeHash(subjectID, code string) string {
	return internal.HashToken(subjectID + ":" + code)
}

// Issue generates a fresh code for (subjectID, purpose), replacing any
// earlier one, and returns the plaintext.
func (m *Manager) Issue(ctx context.Context, subjectID string, purpose Purpose) (string, error) {
	if !purpose.Valid() {
		return "", ErrInvalidPurpose
	}

	code, err := internal.NewOTP(m.config.Length)
	if err != nil {
		return "", err
	}

	expires := m.clock.Now().Add(m.config.TTL).UnixMilli()
	key := m.key(subjectID, purpose)

	_, err = m.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"hash", codeHash(subjectID, code),
			"expires", strconv.FormatInt(expires, 10),
			"used", "0",
			"attempts", "0",
		)
		// Redis drops the record a full TTL after logical expiry.
		pipe.PExpire(ctx, key, 2*m.config.TTL)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return code, nil
}

// Validate consumes code when it matches the newest unused, unexpired code
// for (subjectID, purpose). A code validates at most once.
func (m *Manager) Validate(ctx context.Context, subjectID, code string, purpose Purpose) (bool, error) {
	outcome, err := m.Consume(ctx, subjectID, code, purpose)
	if err != nil {
		return false, err
	}
	return outcome == OutcomeAccepted, nil
}

// Consume is [Manager.Validate] reporting why a code was refused. Every
// wrong guess counts against the stored code; the MaxAttempts-th burns it,
// so even the right code is refused afterwards.
func (m *Manager) Consume(ctx context.Context, subjectID, code string, purpose Purpose) (Outcome, error) {
	if !purpose.Valid() {
		return OutcomeMissing, ErrInvalidPurpose
	}
	if code == "" {
		return OutcomeMismatch, nil
	}

	res, err := consumeLua.Run(ctx, m.redis,
		[]string{m.key(subjectID, purpose)},
		codeHash(subjectID, code),
		m.clock.Now().UnixMilli(),
		m.config.MaxAttempts,
	).Int64()
	if err != nil {
		return OutcomeMissing, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch res {
	case 0:
		return OutcomeMissing, nil
	case 1:
		return OutcomeAccepted, nil
	case 2:
		return OutcomeMismatch, nil
	case 3:
		return OutcomeExpired, nil
	case 4:
		return OutcomeAttemptsExceeded, nil
	default:
		return OutcomeMissing, fmt.Errorf("%w: unknown consume status %d", ErrRedisUnavailable, res)
	}
}
