// Package goReset implements a password reset lifecycle for identifier and
// secret credentials: request a code, validate it, finalize a new secret.
//
// # Lifecycle
//
// RequestPasswordReset issues a six digit code for a known identifier and
// queues it for out-of-band delivery. The code is stored only as
// SHA-256(code || salt) with a fresh 16 byte salt, lives for 15 minutes by
// default, and replaces any earlier code for the same identifier. At most
// five requests per identifier are admitted in any rolling hour.
//
// ValidateResetToken checks a code without consuming it. FinalizePasswordReset
// checks it again, hashes the new secret with argon2id, consumes the code
// atomically and writes the secret, so a code works exactly once.
//
// # Enumeration resistance
//
// The request response is GenericResetMessage for known, unknown and
// rate-limited identifiers alike, and every reset call is padded to
// PasswordResetConfig.MinResponseTime. Delivery never blocks the response
// and its failures are logged and audited only.
//
// # Architecture boundaries
//
// goReset is the public surface: Engine, Builder, Config and value types.
// Flow orchestration, code storage, rate windows and queues live under
// internal/. Credentials are supplied through CredentialStore and codes
// leave through DeliveryAdapter; the credentials and delivery packages
// provide ready-made implementations.
package goReset
