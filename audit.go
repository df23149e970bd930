package goReset

import (
	"io"

	internalaudit "github.com/MrEthical07/goReset/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is one structured audit record. Reset codes and secrets never
// appear in it.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's dispatcher worker.
type AuditSink = internalaudit.Sink

// NoOpSink discards every event.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink forwards events to a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink writes events to a zap logger named "audit".
type ZapSink = internalaudit.ZapSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(logger)
}
