package goReset

import "errors"

var (
	// ErrEngineNotReady is returned when the engine was not built or a required dependency is missing.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrPasswordResetUnavailable is returned when a reset backend (vault, limiter or credential store) fails.
	// It is returned for every identifier alike and never reveals whether an account exists.
	ErrPasswordResetUnavailable = errors.New("password reset backend unavailable")
	// ErrPasswordPolicy is returned when a new secret fails the hashing policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrCredentialNotFound is returned by a CredentialStore for an unknown identifier.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrCredentialExists is returned by a CredentialStore when the identifier is already registered.
	ErrCredentialExists = errors.New("credential already exists")
	// ErrInvalidCredentials is returned by Authenticate for an unknown identifier or a wrong secret.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginLocked is returned by Authenticate while an identifier has too many recent failures.
	ErrLoginLocked = errors.New("login temporarily locked")
	// ErrLoginUnavailable is returned by Authenticate when a backend fails.
	ErrLoginUnavailable = errors.New("login backend unavailable")
	// ErrRegistrationDisabled is returned by Register when RegistrationConfig.Enabled is false.
	ErrRegistrationDisabled = errors.New("registration disabled")
	// ErrRegistrationInvalid is returned by Register for an empty identifier.
	ErrRegistrationInvalid = errors.New("invalid registration request")
	// ErrRegistrationRateLimited is returned by Register when the client address is throttled.
	ErrRegistrationRateLimited = errors.New("registration rate limited")
	// ErrRegistrationUnavailable is returned by Register when a backend fails.
	ErrRegistrationUnavailable = errors.New("registration backend unavailable")
	// ErrSessionInvalid is returned by ValidateSession for a bad, expired or revoked token.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrSessionUnavailable is returned by ValidateSession when the credential store fails.
	ErrSessionUnavailable = errors.New("session backend unavailable")
)
