// Package limiters provides domain-specific rate limiters built on top of the
// internal/rate sliding-window primitive.
//
// # Limiters
//
//   - [PasswordResetLimiter]: per-identifier (and optional per-IP) request budget.
//   - [RegistrationLimiter]: per-IP throttle for sign-ups.
//   - [LoginLockout]: per-identifier failed-login lockout.
//
// All limiters are nil-safe: a nil receiver admits everything.
//
// # Architecture boundaries
//
// Each limiter owns its own key namespace and error types. Policy thresholds
// come from Config structs supplied at construction time.
//
// # What this package must NOT do
//
//   - Import goReset or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting. Flow functions decide consequences.
package limiters
