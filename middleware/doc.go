// Package middleware exposes net/http middleware around goReset.Engine.
//
// # Middleware
//
//   - [RequireSession]: validates the bearer token with
//     Engine.ValidateSession and stores the session in the request context.
//   - [ClientIP]: attaches the caller address so the engine can apply its
//     per-IP throttles and record it in audit events.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does not
// parse tokens itself; every decision is delegated to the engine.
package middleware
