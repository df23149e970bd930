// Package audit records security-relevant reset and account operations.
//
// # Components
//
//   - [Event]: structured record with timestamp, type, identifier, user, IP and metadata.
//   - [Sink]: consumer interface (no-op, channel, JSON lines, zap).
//   - [Dispatcher]: single-worker async relay built on the internal dispatch queue,
//     with drop-if-full or block-if-full intake.
//
// # Architecture boundaries
//
// This package owns buffering and sink delivery. It does NOT decide which events
// to emit; that belongs to the Engine and the flow functions. Reset codes and
// secrets must never be placed in an Event.
package audit
