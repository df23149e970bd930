// Package dispatch provides the bounded asynchronous worker queue shared by
// the audit relay and the reset-code delivery path.
//
// A [Queue] owns a buffered channel and a fixed set of worker goroutines.
// Submit never blocks past the caller's context, and with DropIfFull it never
// blocks at all: overflow is counted in [Queue.Dropped]. Close stops intake,
// drains what is already buffered and waits for the workers.
//
// The package does not know what it is carrying. Retry, timeout and error
// reporting belong to the handler supplied by the caller.
package dispatch
