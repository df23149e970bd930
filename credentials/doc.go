// Package credentials provides goReset.CredentialStore implementations.
//
// MemoryStore keeps records in process memory and suits tests and demos.
// PostgresStore keeps them in a PostgreSQL table managed by embedded goose
// migrations; run Migrate once before use.
//
// Both stores normalize identifiers (trimmed, lowercased) so lookups are
// case-insensitive, and both advance UpdatedAt on every secret change.
package credentials
