package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// dropLogEvery throttles the "buffer full" warning.
const dropLogEvery = 1000

// Config mirrors the Engine's audit settings.
type Config struct {
	Enabled bool
	// BufferSize is the queue length between callers and the sink.
	BufferSize int
	// DropIfFull discards events when the queue is full instead of making
	// the caller wait.
	DropIfFull bool
}

// Dispatcher hands events to a [Sink] on its own goroutine so a slow sink
// never sits on the request path. A nil *Dispatcher is valid and discards
// everything.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool

	queue    chan Event
	stopping chan struct{}
	stopped  sync.WaitGroup
	stopOnce sync.Once
	closed   atomic.Bool

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

// NewDispatcher starts a dispatcher, or returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan Event, size),
		stopping:   make(chan struct{}),
	}
	d.stopped.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.stopped.Done()
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stopping:
			d.drain()
			return
		}
	}
}

// drain flushes whatever was queued before Close.
func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		default:
			return
		}
	}
}

// deliver shields the loop from a panicking sink; one bad event must not
// silence every later one.
func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("audit sink panicked on %s: %v", ev.EventType, r)
		}
	}()
	d.sink.Emit(context.Background(), ev)
	d.delivered.Add(1)
}

// Emit queues ev. With DropIfFull it never blocks; otherwise it waits for
// room until ctx is done.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull {
		select {
		case d.queue <- ev:
		case <-d.stopping:
		default:
			if n := d.dropped.Add(1); n == 1 || n%dropLogEvery == 0 {
				logger.Warningf("audit buffer full, %d events dropped so far", n)
			}
		}
		return
	}

	select {
	case d.queue <- ev:
	case <-ctx.Done():
	case <-d.stopping:
	}
}

// Close stops accepting events, flushes the queue and waits for the sink to
// finish. Later calls are no-ops.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.closed.Store(true)
		close(d.stopping)
		d.stopped.Wait()
	})
}

// Dropped returns the number of events discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered returns the number of events the sink accepted.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
