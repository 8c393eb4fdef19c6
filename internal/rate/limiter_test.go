package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, cfg), mr
}

func TestLoginBudgetAndCooldown(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxLoginAttempts: 3, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "alice", ""); err != nil {
			t.Fatalf("attempt %d unexpectedly limited: %v", i+1, err)
		}
		if err := l.IncrementLogin(ctx, "alice", ""); err != nil {
			t.Fatalf("IncrementLogin failed: %v", err)
		}
	}

	if err := l.CheckLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckLogin(ctx, "bob", ""); err != nil {
		t.Fatalf("expected other usernames unaffected, got %v", err)
	}

	n, err := l.GetLoginAttempts(ctx, "alice")
	if err != nil || n != 3 {
		t.Fatalf("expected 3 attempts, got %d, %v", n, err)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("expected window to reset, got %v", err)
	}
}

func TestResetLoginClearsCounter(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxLoginAttempts: 2, LoginCooldownDuration: time.Minute, EnableIPThrottle: true})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "alice", "10.0.0.1")
	_ = l.IncrementLogin(ctx, "alice", "10.0.0.1")
	if err := l.CheckLogin(ctx, "mallory", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP throttle, got %v", err)
	}

	if err := l.ResetLogin(ctx, "alice", "10.0.0.1"); err != nil {
		t.Fatalf("ResetLogin failed: %v", err)
	}
	if err := l.CheckLogin(ctx, "alice", "10.0.0.1"); err != nil {
		t.Fatalf("expected reset, got %v", err)
	}
}

func TestRedisFailureWrapped(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxLoginAttempts: 2, LoginCooldownDuration: time.Minute})
	mr.Close()

	if err := l.CheckLogin(context.Background(), "alice", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestIncrementArmsExpiryOnce(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxLoginAttempts: 2, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	if err := l.IncrementLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("IncrementLogin failed: %v", err)
	}
	mr.FastForward(40 * time.Second)
	if err := l.IncrementLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("second IncrementLogin failed: %v", err)
	}

	if ttl := mr.TTL("login:user:alice"); ttl <= 0 || ttl > 20*time.Second {
		t.Fatalf("expected window kept from first hit, ttl=%v", ttl)
	}
	if err := l.IncrementLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected third attempt over budget, got %v", err)
	}
}

func TestIPKeyIgnoredWhenThrottleOff(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxLoginAttempts: 1, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "alice", "10.0.0.1")
	if mr.Exists("login:ip:10.0.0.1") {
		t.Fatal("expected no per-IP counter")
	}
	if err := l.CheckLogin(ctx, "bob", "10.0.0.1"); err != nil {
		t.Fatalf("expected bob unaffected, got %v", err)
	}
}
