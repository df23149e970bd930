package flows

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SessionClaims is the flow-local view of a parsed session token.
type SessionClaims struct {
	UserID     string
	Identifier string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

type SessionErrors struct {
	EngineNotReady     error
	SessionInvalid     error
	SessionUnavailable error
}

// SessionDeps captures session validation dependencies.
type SessionDeps struct {
	Logger *zap.Logger

	ParseToken           func(string) (SessionClaims, error)
	FindCredential       func(context.Context, string) (AccountRecord, error)
	IsCredentialNotFound func(error) bool

	Errors SessionErrors
}

// RunValidateSession verifies a session token and checks that its
// credential still exists and has not had its secret changed after the token
// was issued. A successful password reset therefore revokes older sessions.
func RunValidateSession(ctx context.Context, token string, deps SessionDeps) (SessionClaims, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.IsCredentialNotFound == nil {
		deps.IsCredentialNotFound = func(error) bool { return false }
	}
	if deps.ParseToken == nil || deps.FindCredential == nil {
		return SessionClaims{}, deps.Errors.EngineNotReady
	}
	if token == "" {
		return SessionClaims{}, deps.Errors.SessionInvalid
	}

	claims, err := deps.ParseToken(token)
	if err != nil {
		return SessionClaims{}, deps.Errors.SessionInvalid
	}

	record, err := deps.FindCredential(ctx, claims.Identifier)
	if err != nil {
		if deps.IsCredentialNotFound(err) {
			return SessionClaims{}, deps.Errors.SessionInvalid
		}
		deps.Logger.Error("credential lookup failed during session check", zap.Error(err))
		return SessionClaims{}, deps.Errors.SessionUnavailable
	}
	if record.UserID != claims.UserID {
		return SessionClaims{}, deps.Errors.SessionInvalid
	}
	// iat has second precision
	if claims.IssuedAt.Before(record.UpdatedAt.Truncate(time.Second)) {
		return SessionClaims{}, deps.Errors.SessionInvalid
	}

	return claims, nil
}
