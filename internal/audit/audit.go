package audit

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("goaccess.audit")

// Event is one security-relevant occurrence: an authentication step, an
// administrative change or an access decision. Error holds a stable code,
// never the error text, and nothing here may carry a password, code or
// session token.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives events from the dispatcher goroutine.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink discards events.
type NoOpSink struct{}

// Emit does nothing.
func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink forwards events into a buffered channel for in-process
// consumers.
type ChannelSink struct {
	events chan Event
}

// NewChannelSink returns a [ChannelSink]; a non-positive buffer means 1.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

// Emit blocks until the event is taken or ctx ends.
func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events is the receive side.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink appends one JSON document per event to a writer.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONWriterSink returns a [JSONWriterSink] writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		return &JSONWriterSink{}
	}
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

// Emit encodes event. Write failures are logged, not returned.
func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.enc == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(event); err != nil {
		logger.Warningf("writing audit event %s: %v", event.EventType, err)
	}
}

// LoggerSink writes events to the goaccess.audit logger: successes at
// INFO, failures at WARNING.
type LoggerSink struct{}

// Emit formats event as one line.
func (LoggerSink) Emit(_ context.Context, event Event) {
	var b strings.Builder
	b.WriteString(event.EventType)
	if event.UserID != "" {
		b.WriteString(" user=" + event.UserID)
	}
	if event.IP != "" {
		b.WriteString(" ip=" + event.IP)
	}
	if event.Error != "" {
		b.WriteString(" error=" + event.Error)
	}
	keys := make([]string, 0, len(event.Metadata))
	for k := range event.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(" " + k + "=" + event.Metadata[k])
	}

	if event.Success {
		logger.Infof("%s", b.String())
	} else {
		logger.Warningf("%s", b.String())
	}
}

// MultiSink fans each event out to every sink in order.
type MultiSink []Sink

// Emit forwards event to each non-nil sink.
func (m MultiSink) Emit(ctx context.Context, event Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, event)
		}
	}
}
