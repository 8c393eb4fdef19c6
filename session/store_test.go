package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/juju/clock/testclock"
	"github.com/redis/go-redis/v9"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newSessionStoreTest(t *testing.T) (*Store, *testclock.Clock, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clk := testclock.NewClock(epoch)
	return NewStore(rdb, Config{}, clk), clk, mr
}

func TestCreateValidate(t *testing.T) {
	s, _, mr := newSessionStoreTest(t)
	ctx := context.Background()

	token, closed, err := s.Create(ctx, "u1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if closed != 0 {
		t.Fatalf("expected no prior sessions closed, got %d", closed)
	}

	for _, k := range mr.Keys() {
		if k == sessionKeyPrefix+token {
			t.Fatal("raw token must not appear in Redis keys")
		}
	}

	user, ok, err := s.Validate(ctx, token)
	if err != nil || !ok || user != "u1" {
		t.Fatalf("expected u1, got %q, %v, %v", user, ok, err)
	}

	sess, ok, err := s.Lookup(ctx, token)
	if err != nil || !ok {
		t.Fatalf("Lookup failed: %v, %v", ok, err)
	}
	if !sess.CreatedAt.Equal(epoch) || !sess.ExpiresAt.Equal(epoch.Add(30*time.Minute)) {
		t.Fatalf("unexpected session times %+v", sess)
	}
}

func TestValidateUnknownAndEmpty(t *testing.T) {
	s, _, _ := newSessionStoreTest(t)
	ctx := context.Background()

	for _, token := range []string{"", "not-a-token"} {
		user, ok, err := s.Validate(ctx, token)
		if err != nil || ok || user != "" {
			t.Fatalf("Validate(%q) = %q, %v, %v", token, user, ok, err)
		}
	}
}

func TestCreateDeactivatesPriorSessions(t *testing.T) {
	s, _, _ := newSessionStoreTest(t)
	ctx := context.Background()

	first, _, err := s.Create(ctx, "u1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	other, _, err := s.Create(ctx, "u2")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second, closed, err := s.Create(ctx, "u1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if closed != 1 {
		t.Fatalf("expected 1 session closed, got %d", closed)
	}

	if _, ok, _ := s.Validate(ctx, first); ok {
		t.Fatal("expected first session to be inactive")
	}
	if _, ok, _ := s.Validate(ctx, second); !ok {
		t.Fatal("expected second session to be active")
	}
	if _, ok, _ := s.Validate(ctx, other); !ok {
		t.Fatal("expected other subject's session untouched")
	}

	n, err := s.ActiveCount(ctx, "u1")
	if err != nil || n != 1 {
		t.Fatalf("expected 1 active session, got %d, %v", n, err)
	}
}

func TestConcurrentCreateLeavesOneActive(t *testing.T) {
	s, _, _ := newSessionStoreTest(t)
	ctx := context.Background()

	const workers = 16
	tokens := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, _, err := s.Create(ctx, "u1")
			if err != nil {
				t.Errorf("Create failed: %v", err)
				return
			}
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	n, err := s.ActiveCount(ctx, "u1")
	if err != nil || n != 1 {
		t.Fatalf("expected exactly 1 active session, got %d, %v", n, err)
	}

	valid := 0
	for _, tok := range tokens {
		if _, ok, _ := s.Validate(ctx, tok); ok {
			valid++
		}
	}
	if valid != 1 {
		t.Fatalf("expected exactly one valid token, got %d", valid)
	}
}

func TestLazyExpiry(t *testing.T) {
	s, clk, _ := newSessionStoreTest(t)
	ctx := context.Background()

	token, _, err := s.Create(ctx, "u1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	clk.Advance(30 * time.Minute)
	if _, ok, _ := s.Validate(ctx, token); !ok {
		t.Fatal("expected session valid at exactly its expiry instant")
	}

	clk.Advance(time.Millisecond)
	if _, ok, _ := s.Validate(ctx, token); ok {
		t.Fatal("expected expired session to fail")
	}
	n, err := s.ActiveCount(ctx, "u1")
	if err != nil || n != 0 {
		t.Fatalf("expected expiry to deactivate the session, got %d, %v", n, err)
	}

	// Deactivation is terminal.
	sess, ok, err := s.Lookup(ctx, token)
	if err != nil || ok || sess.Active {
		t.Fatalf("expected inactive session, got %+v, %v, %v", sess, ok, err)
	}
}

func TestInvalidateIdempotent(t *testing.T) {
	s, _, _ := newSessionStoreTest(t)
	ctx := context.Background()

	token, _, err := s.Create(ctx, "u1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	closed, err := s.Invalidate(ctx, token)
	if err != nil || !closed {
		t.Fatalf("expected first invalidate to close, got %v, %v", closed, err)
	}
	closed, err = s.Invalidate(ctx, token)
	if err != nil || closed {
		t.Fatalf("expected second invalidate to be a no-op, got %v, %v", closed, err)
	}
	if _, err := s.Invalidate(ctx, "unknown"); err != nil {
		t.Fatalf("expected unknown token to be a no-op, got %v", err)
	}
	if _, ok, _ := s.Validate(ctx, token); ok {
		t.Fatal("expected invalidated session to fail validation")
	}
}

func TestInvalidateAll(t *testing.T) {
	s, _, _ := newSessionStoreTest(t)
	ctx := context.Background()

	token, _, err := s.Create(ctx, "u1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	n, err := s.InvalidateAll(ctx, "u1")
	if err != nil || n != 1 {
		t.Fatalf("expected 1 closed, got %d, %v", n, err)
	}
	if _, ok, _ := s.Validate(ctx, token); ok {
		t.Fatal("expected session inactive after InvalidateAll")
	}
	n, err = s.InvalidateAll(ctx, "u1")
	if err != nil || n != 0 {
		t.Fatalf("expected idempotent InvalidateAll, got %d, %v", n, err)
	}
}

func TestRedisUnavailable(t *testing.T) {
	s, _, mr := newSessionStoreTest(t)
	mr.Close()

	if _, _, err := s.Create(context.Background(), "u1"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if _, _, err := s.Validate(context.Background(), "tok"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
