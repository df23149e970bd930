package goReset

import (
	"context"
	"time"
)

// GenericResetMessage is the only message RequestPasswordReset ever returns.
// It is identical for known, unknown and rate-limited identifiers.
const GenericResetMessage = "If an account exists for this email, a verification code has been sent."

// CredentialRecord is the stored credential for one identifier. Identifier
// is normalized (trimmed, lowercased) and unique. SecretHash is an argon2id
// PHC string; plaintext secrets are never stored.
type CredentialRecord struct {
	UserID      string
	Identifier  string
	DisplayName string
	SecretHash  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CredentialStore persists credential records.
//
// FindCredential and UpdateSecret must return an error wrapping
// ErrCredentialNotFound for an unknown identifier. CreateCredential must
// return an error wrapping ErrCredentialExists when the identifier is taken.
// UpdateSecret must also advance UpdatedAt, which revokes session tokens
// issued before the change.
//
// Implementations must be safe for concurrent use.
type CredentialStore interface {
	FindCredential(ctx context.Context, identifier string) (CredentialRecord, error)
	UpdateSecret(ctx context.Context, identifier, secretHash string) error
	CreateCredential(ctx context.Context, record CredentialRecord) error
}

// DeliveryMessage carries one freshly issued reset code to the account
// holder. Code is the only plaintext copy; adapters must not log or persist
// it.
type DeliveryMessage struct {
	RequestID   string
	UserID      string
	Identifier  string
	DisplayName string
	Code        string
	ExpiresAt   time.Time
}

// DeliveryAdapter sends reset codes out of band (email, SMS, webhook).
// Delivery is best-effort: errors are logged, counted and audited but never
// change the response of RequestPasswordReset.
type DeliveryAdapter interface {
	Deliver(ctx context.Context, msg DeliveryMessage) error
}

// DeliveryFunc adapts a function to DeliveryAdapter.
type DeliveryFunc func(ctx context.Context, msg DeliveryMessage) error

func (f DeliveryFunc) Deliver(ctx context.Context, msg DeliveryMessage) error {
	return f(ctx, msg)
}

// ResetResponse is returned by RequestPasswordReset. Found is populated only
// when PasswordResetConfig.ExposeFound is enabled and is false otherwise.
type ResetResponse struct {
	Message string
	Found   bool
}

// RegisterRequest is the input to Engine.Register.
type RegisterRequest struct {
	Identifier  string
	DisplayName string
	Secret      string
}

// SessionInfo describes a valid session token.
type SessionInfo struct {
	UserID     string
	Identifier string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}
