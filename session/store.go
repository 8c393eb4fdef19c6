package session

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

// ErrRedisUnavailable wraps Redis failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	sessionKeyPrefix = "as:"
	userKeyPrefix    = "au:"
)

const (
	validateStatusMissing int64 = 0
	validateStatusActive  int64 = 1
	validateStatusExpired int64 = 2
)

// deactivate every indexed session of the subject, then write and index the
// new one.
const createScript = `
local closed = 0
for _, id in ipairs(redis.call("SMEMBERS", KEYS[2])) do
  local k = ARGV[6] .. id
  if redis.call("HGET", k, "active") == "1" then
    redis.call("HSET", k, "active", "0")
    redis.call("PEXPIRE", k, ARGV[7])
    closed = closed + 1
  end
end
redis.call("DEL", KEYS[2])
redis.call("HSET", KEYS[1], "user", ARGV[2], "created", ARGV[3], "expires", ARGV[4], "active", "1")
redis.call("PEXPIRE", KEYS[1], ARGV[5])
redis.call("SADD", KEYS[2], ARGV[1])
redis.call("PEXPIRE", KEYS[2], ARGV[5])
return closed
`

var createLua = redis.NewScript(createScript)

const validateScript = `
local rec = redis.call("HMGET", KEYS[1], "user", "created", "expires", "active")
if not rec[1] or rec[4] ~= "1" then
  return {0, "", 0, 0}
end
if tonumber(ARGV[1]) > tonumber(rec[3]) then
  redis.call("HSET", KEYS[1], "active", "0")
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
  redis.call("SREM", ARGV[3] .. rec[1], ARGV[4])
  return {2, rec[1], tonumber(rec[2]), tonumber(rec[3])}
end
return {1, rec[1], tonumber(rec[2]), tonumber(rec[3])}
`

var validateLua = redis.NewScript(validateScript)

const invalidateScript = `
local user = redis.call("HGET", KEYS[1], "user")
if not user then
  return 0
end
redis.call("SREM", ARGV[3] .. user, ARGV[1])
if redis.call("HGET", KEYS[1], "active") == "1" then
  redis.call("HSET", KEYS[1], "active", "0")
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
  return 1
end
return 0
`

var invalidateLua = redis.NewScript(invalidateScript)

const invalidateAllScript = `
local closed = 0
for _, id in ipairs(redis.call("SMEMBERS", KEYS[1])) do
  local k = ARGV[1] .. id
  if redis.call("HGET", k, "active") == "1" then
    redis.call("HSET", k, "active", "0")
    redis.call("PEXPIRE", k, ARGV[2])
    closed = closed + 1
  end
end
redis.call("DEL", KEYS[1])
return closed
`

var invalidateAllLua = redis.NewScript(invalidateAllScript)

const activeCountScript = `
local n = 0
for _, id in ipairs(redis.call("SMEMBERS", KEYS[1])) do
  if redis.call("HGET", ARGV[1] .. id, "active") == "1" then
    n = n + 1
  end
end
return n
`

var activeCountLua = redis.NewScript(activeCountScript)

// Store is a Redis-backed session store.
//
// Scripts derive session keys from the subject index at run time, so the
// store requires a single-node or single-slot deployment.
type Store struct {
	redis  redis.UniversalClient
	config Config
	clock  clock.Clock
}

// NewStore creates a session [Store]. Zero config fields take their defaults
// and a nil clock means wall time.
func NewStore(rdb redis.UniversalClient, cfg Config, clk clock.Clock) *Store {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RetainInactive <= 0 {
		cfg.RetainInactive = def.RetainInactive
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Store{redis: rdb, config: cfg, clock: clk}
}

// Config returns the effective configuration.
func (s *Store) Config() Config {
	return s.config
}

func (s *Store) key(id string) string {
	return sessionKeyPrefix + id
}

func (s *Store) userKey(userID string) string {
	return userKeyPrefix + userID
}

func (s *Store) retainMillis() string {
	return strconv.FormatInt(s.config.RetainInactive.Milliseconds(), 10)
}

// Create issues a new token for userID and deactivates every session the
// subject held before. It returns the plaintext token and the number of
// sessions it closed.
//
//	Performance: 1 Lua script, O(active sessions of the subject).
func (s *Store) Create(ctx context.Context, userID string) (string, int, error) {
	token, err := internal.NewSessionToken()
	if err != nil {
		return "", 0, err
	}

	id := internal.HashToken(token)
	now := s.clock.Now()
	expires := now.Add(s.config.Timeout)
	ttl := s.config.Timeout + s.config.RetainInactive

	closed, err := createLua.Run(ctx, s.redis,
		[]string{s.key(id), s.userKey(userID)},
		id,
		userID,
		now.UnixMilli(),
		expires.UnixMilli(),
		ttl.Milliseconds(),
		sessionKeyPrefix,
		s.retainMillis(),
	).Int64()
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return token, int(closed), nil
}

// Lookup returns the session behind token. The bool is false for an empty,
// unknown, inactive or expired token; an expired session is deactivated as a
// side effect.
func (s *Store) Lookup(ctx context.Context, token string) (Session, bool, error) {
	if token == "" {
		return Session{}, false, nil
	}

	id := internal.HashToken(token)
	res, err := validateLua.Run(ctx, s.redis,
		[]string{s.key(id)},
		s.clock.Now().UnixMilli(),
		s.retainMillis(),
		userKeyPrefix,
		id,
	).Slice()
	if err != nil {
		return Session{}, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) != 4 {
		return Session{}, false, fmt.Errorf("%w: invalid validate script response", ErrRedisUnavailable)
	}

	status, ok := res[0].(int64)
	if !ok {
		return Session{}, false, fmt.Errorf("%w: invalid validate script status", ErrRedisUnavailable)
	}

	switch status {
	case validateStatusMissing:
		return Session{}, false, nil
	case validateStatusActive, validateStatusExpired:
		userID, _ := res[1].(string)
		created, _ := res[2].(int64)
		expires, _ := res[3].(int64)
		sess := Session{
			UserID:    userID,
			CreatedAt: time.UnixMilli(created).UTC(),
			ExpiresAt: time.UnixMilli(expires).UTC(),
			Active:    status == validateStatusActive,
		}
		return sess, sess.Active, nil
	default:
		return Session{}, false, fmt.Errorf("%w: unknown validate status %d", ErrRedisUnavailable, status)
	}
}

// Validate returns the subject owning token when the session is active and
// unexpired.
//
//	Performance: 1 Lua script.
func (s *Store) Validate(ctx context.Context, token string) (string, bool, error) {
	sess, ok, err := s.Lookup(ctx, token)
	if err != nil || !ok {
		return "", false, err
	}
	return sess.UserID, true, nil
}

// Invalidate deactivates the session behind token. Unknown and already
// inactive tokens are a no-op. It reports whether a session was closed.
func (s *Store) Invalidate(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	id := internal.HashToken(token)
	closed, err := invalidateLua.Run(ctx, s.redis,
		[]string{s.key(id)},
		id,
		s.retainMillis(),
		userKeyPrefix,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return closed == 1, nil
}

// InvalidateAll deactivates every active session of userID and returns how
// many were closed.
func (s *Store) InvalidateAll(ctx context.Context, userID string) (int, error) {
	closed, err := invalidateAllLua.Run(ctx, s.redis,
		[]string{s.userKey(userID)},
		sessionKeyPrefix,
		s.retainMillis(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(closed), nil
}

// ActiveCount returns the number of sessions of userID whose active flag is
// set. Sessions past expiry count until a validation flips them.
func (s *Store) ActiveCount(ctx context.Context, userID string) (int, error) {
	n, err := activeCountLua.Run(ctx, s.redis,
		[]string{s.userKey(userID)},
		sessionKeyPrefix,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(n), nil
}

// Ping measures Redis round-trip latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
