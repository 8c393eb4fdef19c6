package goAccess

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/goAccess/notify"
	"github.com/MrEthical07/goAccess/otp"
	"github.com/MrEthical07/goAccess/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/juju/clock/testclock"
	"github.com/redis/go-redis/v9"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

const testPassword = "correct-password-123"

type harness struct {
	engine *Engine
	mr     *miniredis.Miniredis
	mem    *memory.Store
	clock  *testclock.Clock
	mail   *notify.Recorder
}

type harnessOption func(cfg *Config, b *Builder)

func withAuditSink(sink AuditSink) harnessOption {
	return func(cfg *Config, b *Builder) {
		cfg.Audit.Enabled = true
		cfg.Audit.BufferSize = 64
		cfg.Audit.DropIfFull = false
		b.WithAuditSink(sink)
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func newTestRedis(tb testing.TB) (*miniredis.Miniredis, *redis.Client) {
	tb.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		tb.Fatalf("miniredis.Run failed: %v", err)
	}
	tb.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tb.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// newHarness builds an Engine over miniredis and the memory store with the
// default accounts seeded.
func newHarness(tb testing.TB, opts ...harnessOption) *harness {
	tb.Helper()

	mr, rdb := newTestRedis(tb)
	h := &harness{
		mr:    mr,
		mem:   memory.New(),
		clock: testclock.NewClock(epoch),
		mail:  notify.NewRecorder(),
	}

	cfg := testConfig()
	b := New()
	for _, opt := range opts {
		opt(&cfg, b)
	}

	engine, err := b.
		WithConfig(cfg).
		WithRedis(rdb).
		WithStore(h.mem).
		WithNotifier(h.mail).
		WithClock(h.clock).
		Build()
	if err != nil {
		tb.Fatalf("Build failed: %v", err)
	}
	tb.Cleanup(engine.Close)
	h.engine = engine

	if err := engine.Seed(context.Background(), testPassword); err != nil {
		tb.Fatalf("Seed failed: %v", err)
	}
	return h
}

// seeded returns the id of a seeded account.
func (h *harness) seeded(tb testing.TB, username string) string {
	tb.Helper()
	u, err := h.mem.UserByUsername(context.Background(), username)
	if err != nil {
		tb.Fatalf("seeded account %s missing: %v", username, err)
	}
	return u.ID
}

func (h *harness) code(tb testing.TB, email string, purpose otp.Purpose) string {
	tb.Helper()
	msg, ok := h.mail.Last(email, string(purpose))
	if !ok {
		tb.Fatalf("no %s code delivered to %s", purpose, email)
	}
	return msg.Code
}

// registerVerified registers an account and confirms its e-mail.
func (h *harness) registerVerified(tb testing.TB, username, email string) string {
	tb.Helper()
	ctx := context.Background()

	res, err := h.engine.Register(ctx, username, email, testPassword)
	if err != nil {
		tb.Fatalf("Register failed: %v", err)
	}
	if _, err := h.engine.VerifyEmail(ctx, email, h.code(tb, email, otp.EmailVerification)); err != nil {
		tb.Fatalf("VerifyEmail failed: %v", err)
	}
	return res.Payload.UserID
}

// login runs both login steps and returns the session token.
func (h *harness) login(tb testing.TB, username string) string {
	tb.Helper()
	ctx := context.Background()

	u, err := h.mem.UserByUsername(ctx, username)
	if err != nil {
		tb.Fatalf("UserByUsername failed: %v", err)
	}
	if _, err := h.engine.Login(ctx, username, testPassword); err != nil {
		tb.Fatalf("Login failed: %v", err)
	}
	res, err := h.engine.Verify2FA(ctx, username, h.code(tb, u.Email, otp.TwoFactor))
	if err != nil {
		tb.Fatalf("Verify2FA failed: %v", err)
	}
	return res.Payload.SessionToken
}
