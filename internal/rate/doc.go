// Package rate provides the sliding-window log primitive used by every
// limiter in goReset, with Redis and in-process implementations.
//
// # Window semantics
//
// Each key holds the timestamps of accepted events. On access, timestamps
// at or before now-window are pruned; an event is accepted and recorded
// when fewer than limit timestamps remain. The window therefore rolls
// continuously instead of resetting on fixed boundaries.
//
// Redis logs are sorted sets scored by unix microseconds with a key expiry
// equal to the window. Updates run under WATCH/MULTI with bounded retry.
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters).
//   - Be imported outside the goReset module.
package rate
