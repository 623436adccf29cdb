package pairauth

import (
	"io"

	"github.com/MrEthical07/pairauth/internal/audit"
)

// AuditEvent is the record delivered to an AuditSink.
type AuditEvent = audit.Event

// AuditSink consumes audit events. Emit runs on the dispatcher goroutine and
// must not block for long when DropIfFull is disabled.
type AuditSink = audit.Sink

// AuditSinkFunc adapts a function to AuditSink.
type AuditSinkFunc = audit.SinkFunc

// AuditSeverity ranks events. Alerts (refresh token reuse, session
// revocation) are never dropped by a full buffer.
type AuditSeverity = audit.Severity

const (
	AuditSeverityInfo  = audit.SeverityInfo
	AuditSeverityAlert = audit.SeverityAlert
)

// AuditStats reports audit delivery counters, with drops split by operation.
type AuditStats = audit.Stats

// NoOpSink discards every event.
type NoOpSink = audit.NoOpSink

// ChannelSink forwards events into a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per event.
type JSONWriterSink = audit.JSONWriterSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}
