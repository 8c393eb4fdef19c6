package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWindowScript bumps a fixed-window counter and arms its expiry on the
// first hit, in one step, so a counter can never outlive its window.
const incrWindowScript = `
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`

var incrWindowLua = redis.NewScript(incrWindowScript)

// Config holds rate limiter tuning parameters.
type Config struct {
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
}

// Limiter counts failed password attempts per username, and optionally per
// client IP, in fixed Redis windows of LoginCooldownDuration.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *Limiter) keys(username, ip string) []string {
	keys := []string{loginUserKey(username)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, loginIPKey(ip))
	}
	return keys
}

// CheckLogin returns [ErrRateLimited] once the username, or the IP when IP
// throttling is on, has used up its attempts for the current window.
//
//	Performance: 1 MGET.
func (l *Limiter) CheckLogin(ctx context.Context, username, ip string) error {
	vals, err := l.redis.MGet(ctx, l.keys(username, ip)...).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	for _, v := range vals {
		if counterValue(v) >= int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// IncrementLogin records a failed attempt. It returns [ErrRateLimited] when
// this attempt exhausted a budget.
func (l *Limiter) IncrementLogin(ctx context.Context, username, ip string) error {
	window := strconv.FormatInt(l.config.LoginCooldownDuration.Milliseconds(), 10)

	limited := false
	for _, key := range l.keys(username, ip) {
		n, err := incrWindowLua.Run(ctx, l.redis, []string{key}, window).Int64()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if n > int64(l.config.MaxLoginAttempts) {
			limited = true
		}
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

// ResetLogin clears the counters after a correct password.
func (l *Limiter) ResetLogin(ctx context.Context, username, ip string) error {
	if err := l.redis.Del(ctx, l.keys(username, ip)...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// GetLoginAttempts returns the failed attempts recorded for username in the
// current window. Unknown usernames read as zero.
func (l *Limiter) GetLoginAttempts(ctx context.Context, username string) (int, error) {
	n, err := l.redis.Get(ctx, loginUserKey(username)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(max(n, 0)), nil
}

// counterValue reads one MGET slot; missing and unparsable keys count as 0.
func counterValue(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
