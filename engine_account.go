package goReset

import (
	"context"
	"errors"
	"time"

	internalflows "github.com/MrEthical07/goReset/internal/flows"
	"github.com/MrEthical07/goReset/internal/limiters"
	"github.com/google/uuid"
)

// Register creates a credential. The identifier is normalized and must be
// unused; the secret must satisfy the password policy.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (CredentialRecord, error) {
	if e == nil || !e.flows.Initialized() {
		return CredentialRecord{}, ErrEngineNotReady
	}
	if !e.config.Registration.Enabled {
		e.emitAudit(ctx, auditEventAccountRegister, false, "", "", ErrRegistrationDisabled, func() map[string]string {
			return map[string]string{
				"reason": "feature_disabled",
			}
		})
		return CredentialRecord{}, ErrRegistrationDisabled
	}

	record, err := e.flows.Register(ctx, internalflows.AccountRegisterRequest{
		Identifier:  req.Identifier,
		DisplayName: req.DisplayName,
		Secret:      req.Secret,
	})
	if err != nil {
		return CredentialRecord{}, err
	}
	return credentialFromFlow(record), nil
}

// Authenticate checks the secret for identifier and returns a signed session
// token. Unknown identifiers and wrong secrets both return
// ErrInvalidCredentials.
func (e *Engine) Authenticate(ctx context.Context, identifier, secret string) (string, error) {
	if e == nil || !e.flows.Initialized() {
		return "", ErrEngineNotReady
	}
	return e.flows.Authenticate(ctx, identifier, secret)
}

// ValidateSession verifies a token returned by Authenticate. Tokens issued
// before the credential's last secret change are rejected, so a completed
// password reset signs out every older session.
func (e *Engine) ValidateSession(ctx context.Context, token string) (SessionInfo, error) {
	if e == nil || !e.flows.Initialized() {
		return SessionInfo{}, ErrEngineNotReady
	}
	claims, err := e.flows.ValidateSession(ctx, token)
	if err != nil {
		return SessionInfo{}, err
	}
	return SessionInfo{
		UserID:     claims.UserID,
		Identifier: claims.Identifier,
		IssuedAt:   claims.IssuedAt,
		ExpiresAt:  claims.ExpiresAt,
	}, nil
}

func (e *Engine) findAccount(ctx context.Context, identifier string) (internalflows.AccountRecord, error) {
	record, err := e.store.FindCredential(ctx, identifier)
	if err != nil {
		return internalflows.AccountRecord{}, err
	}
	return internalflows.AccountRecord{
		UserID:      record.UserID,
		Identifier:  record.Identifier,
		DisplayName: record.DisplayName,
		SecretHash:  record.SecretHash,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}, nil
}

func (e *Engine) accountFlowDeps() internalflows.AccountDeps {
	deps := internalflows.AccountDeps{
		Logger:              e.logger,
		ClientIPFromContext: clientIPFromContext,
		Now:                 e.now,
		NewUserID:           uuid.NewString,
		MapLimiterError: func(err error) error {
			if errors.Is(err, limiters.ErrRegistrationRateLimited) {
				return ErrRegistrationRateLimited
			}
			return ErrRegistrationUnavailable
		},
		HashSecret: e.passwordHash.Hash,
		CreateCredential: func(ctx context.Context, record internalflows.AccountRecord) error {
			return e.store.CreateCredential(ctx, credentialFromFlow(record))
		},
		IsDuplicate: func(err error) bool {
			return errors.Is(err, ErrCredentialExists)
		},
		MapCredentialError: func(err error) error {
			return ErrRegistrationUnavailable
		},
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Metrics: internalflows.AccountMetrics{
			RegisterSuccess:     int(MetricRegisterSuccess),
			RegisterDuplicate:   int(MetricRegisterDuplicate),
			RegisterRateLimited: int(MetricRegisterRateLimited),
		},
		Events: internalflows.AccountEvents{
			Register: auditEventAccountRegister,
		},
		Errors: internalflows.AccountErrors{
			EngineNotReady:          ErrEngineNotReady,
			RegistrationInvalid:     ErrRegistrationInvalid,
			RegistrationRateLimited: ErrRegistrationRateLimited,
			RegistrationUnavailable: ErrRegistrationUnavailable,
			PasswordPolicy:          ErrPasswordPolicy,
			CredentialExists:        ErrCredentialExists,
		},
	}
	if e.config.Registration.EnableIPThrottle {
		deps.EnforceRegistrationLimiter = e.regLimiter.Enforce
	}
	return deps
}

func (e *Engine) loginFlowDeps() internalflows.LoginDeps {
	return internalflows.LoginDeps{
		SecretUpgradeOnLogin: e.config.Password.UpgradeOnLogin,
		Logger:               e.logger,
		CheckLockout:         e.lockout.Check,
		RecordFailure:        e.lockout.RecordFailure,
		ResetLockout:         e.lockout.Reset,
		MapLockoutErr: func(err error) error {
			if errors.Is(err, limiters.ErrLoginLocked) {
				return ErrLoginLocked
			}
			return ErrLoginUnavailable
		},
		FindCredential:       e.findAccount,
		IsCredentialNotFound: isCredentialNotFound,
		UpdateSecret:         e.store.UpdateSecret,
		VerifySecret:         e.passwordHash.Verify,
		SecretNeedsUpgrade:   e.passwordHash.NeedsUpgrade,
		HashSecret:           e.passwordHash.Hash,
		DummyVerify:          e.passwordHash.DummyVerify,
		IssueSessionToken: func(_ context.Context, record internalflows.AccountRecord) (string, error) {
			token, _, err := e.jwtManager.Issue(record.UserID, record.Identifier)
			return token, err
		},
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Metrics: internalflows.LoginMetrics{
			LoginSuccess: int(MetricLoginSuccess),
			LoginFailure: int(MetricLoginFailure),
			LoginLocked:  int(MetricLoginLocked),
		},
		Events: internalflows.LoginEvents{
			Login: auditEventAccountLogin,
		},
		Errors: internalflows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidCredentials: ErrInvalidCredentials,
			LoginLocked:        ErrLoginLocked,
			LoginUnavailable:   ErrLoginUnavailable,
		},
	}
}

func (e *Engine) sessionFlowDeps() internalflows.SessionDeps {
	return internalflows.SessionDeps{
		Logger: e.logger,
		ParseToken: func(token string) (internalflows.SessionClaims, error) {
			claims, err := e.jwtManager.Parse(token)
			if err != nil {
				return internalflows.SessionClaims{}, err
			}
			var issuedAt, expiresAt time.Time
			if claims.IssuedAt != nil {
				issuedAt = claims.IssuedAt.Time
			}
			if claims.ExpiresAt != nil {
				expiresAt = claims.ExpiresAt.Time
			}
			return internalflows.SessionClaims{
				UserID:     claims.UID,
				Identifier: claims.Identifier,
				IssuedAt:   issuedAt,
				ExpiresAt:  expiresAt,
			}, nil
		},
		FindCredential:       e.findAccount,
		IsCredentialNotFound: isCredentialNotFound,
		Errors: internalflows.SessionErrors{
			EngineNotReady:     ErrEngineNotReady,
			SessionInvalid:     ErrSessionInvalid,
			SessionUnavailable: ErrSessionUnavailable,
		},
	}
}

func credentialFromFlow(record internalflows.AccountRecord) CredentialRecord {
	return CredentialRecord{
		UserID:      record.UserID,
		Identifier:  record.Identifier,
		DisplayName: record.DisplayName,
		SecretHash:  record.SecretHash,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}
