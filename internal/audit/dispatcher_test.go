package audit

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{gate: make(chan struct{})}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &countingSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	// nil dispatcher is safe to use
	d.Emit(context.Background(), Event{EventType: "e"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("expected zero drops on nil dispatcher")
	}
}

func TestDropIfFullDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Emit(context.Background(), Event{EventType: "e2"})

	start := time.Now()
	d.Emit(context.Background(), Event{EventType: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestBlockUntilSpace(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: false}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Emit(context.Background(), Event{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		d.Emit(context.Background(), Event{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestCloseIdempotentAndEmitAfterCloseSafe(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4, DropIfFull: true}, sink)

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Close()
	d.Close()
	d.Emit(context.Background(), Event{EventType: "e2"})

	if got := sink.count.Load(); got != 1 {
		t.Fatalf("expected queued event flushed on close and later one ignored, got %d", got)
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf lockedBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{
		Timestamp: time.Now().UTC(),
		EventType: "login_password_verified",
		UserID:    "u1",
		IP:        "127.0.0.1",
		Success:   true,
	})

	out := buf.buf.String()
	if !bytes.Contains([]byte(out), []byte(`"event_type":"login_password_verified"`)) {
		t.Fatalf("expected event type in output, got %s", out)
	}
	if !bytes.Contains([]byte(out), []byte(`"user_id":"u1"`)) {
		t.Fatalf("expected user id in output, got %s", out)
	}
	if out[len(out)-1] != '\n' {
		t.Fatal("expected newline-terminated JSON line")
	}
}

type panicSink struct {
	calls atomic.Int64
}

func (s *panicSink) Emit(_ context.Context, ev Event) {
	s.calls.Add(1)
	if ev.EventType == "boom" {
		panic("sink failure")
	}
}

func TestSinkPanicDoesNotStopDispatcher(t *testing.T) {
	sink := &panicSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)

	d.Emit(context.Background(), Event{EventType: "boom"})
	d.Emit(context.Background(), Event{EventType: "after"})
	d.Close()

	if got := sink.calls.Load(); got != 2 {
		t.Fatalf("expected both events handed to the sink, got %d", got)
	}
	if got := d.Delivered(); got != 1 {
		t.Fatalf("expected one delivered event, got %d", got)
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	m := MultiSink{a, nil, b, LoggerSink{}}

	m.Emit(context.Background(), Event{EventType: "access_denied", Metadata: map[string]string{"resource_id": "doc1"}})
	m.Emit(context.Background(), Event{EventType: "access_approved", Success: true})

	if a.count.Load() != 2 || b.count.Load() != 2 {
		t.Fatalf("expected every sink to see both events, got %d and %d", a.count.Load(), b.count.Load())
	}
}

func TestJSONWriterSinkNilWriter(t *testing.T) {
	sink := NewJSONWriterSink(nil)
	sink.Emit(context.Background(), Event{EventType: "e"})
}
