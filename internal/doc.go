// Package internal contains helper utilities that are intentionally private to goReset,
// including reset code generation, hashing and identifier normalization.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - dispatch: bounded async delivery of reset codes
//   - flows: flow orchestrators for every Engine operation
//   - limiters: domain-specific rate limiters (reset, registration, login)
//   - logging: zap logger construction
//   - conf: daemon configuration loading
//   - rate: sliding-window rate limit primitives (Redis + memory)
//   - stores: reset record stores (Redis + memory)
//   - vault: single active reset token per identifier
//
// # What this package must NOT do
//
//   - Export types that appear in the public goReset API.
//   - Be imported by any package outside the goReset module.
package internal
