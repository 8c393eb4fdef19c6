package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIPLimiterPerAddress(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newIPLimiter(1, 2)
	l.now = func() time.Time { return now }

	if !l.allow("10.0.0.1") || !l.allow("10.0.0.1") {
		t.Fatalf("burst of 2 must be allowed")
	}
	if l.allow("10.0.0.1") {
		t.Fatalf("third request must be limited")
	}
	if !l.allow("10.0.0.2") {
		t.Fatalf("other addresses have their own bucket")
	}

	now = now.Add(time.Second)
	if !l.allow("10.0.0.1") {
		t.Fatalf("bucket must refill after one second")
	}
}

func TestIPLimiterDropsIdleBuckets(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newIPLimiter(1, 1)
	l.now = func() time.Time { return now }

	l.allow("10.0.0.1")
	l.allow("10.0.0.2")

	now = now.Add(limiterIdleTTL + time.Second)
	l.allow("10.0.0.3")

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.buckets) != 1 {
		t.Fatalf("expected idle buckets dropped, have %d", len(l.buckets))
	}
	if _, ok := l.buckets["10.0.0.3"]; !ok {
		t.Fatalf("fresh bucket missing")
	}
}

func TestIPLimiterMiddleware(t *testing.T) {
	l := newIPLimiter(0.001, 1)
	h := l.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "192.0.2.7:51234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := serve(); code != http.StatusNoContent {
		t.Fatalf("first request: expected 204, got %d", code)
	}
	if code := serve(); code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", code)
	}
}
