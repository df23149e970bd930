// Package stores provides short-lived reset record stores for the password
// reset flow, backed by Redis or by process memory.
//
// # Design
//
// Each store keeps at most one record per normalized identifier. Redis
// records are versioned and binary-encoded with a TTL; Save is a single SET
// so issuing a new code replaces the previous one atomically. Consume runs
// a WATCH/MULTI optimistic transaction with retry on contention and lets
// the caller's check decide whether the record is removed, which gives
// single-winner semantics to concurrent consumers.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control for reset records.
// It does NOT generate codes, compare hashes or apply expiry policy; those
// belong to internal/vault.
//
// # What this package must NOT do
//
//   - Import goReset or any sibling internal package.
//   - Persist or log plaintext reset codes.
package stores
