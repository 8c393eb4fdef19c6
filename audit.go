package goAccess

import (
	"io"

	"github.com/MrEthical07/goAccess/internal/audit"
)

// AuditEvent is one security-relevant occurrence. It never carries
// passwords, codes or session tokens.
type AuditEvent = audit.Event

// AuditSink receives audit events from the Engine's dispatcher goroutine.
// Persisting them is the sink's business.
type AuditSink = audit.Sink

// NoOpSink drops every event.
type NoOpSink = audit.NoOpSink

// ChannelSink forwards events into a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// LoggerSink writes events to the goaccess.audit logger.
type LoggerSink = audit.LoggerSink

// MultiSink sends every event to each of its sinks.
type MultiSink = audit.MultiSink

// NewChannelSink returns a [ChannelSink] with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a [JSONWriterSink] writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}
