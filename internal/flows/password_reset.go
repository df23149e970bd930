package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goReset/internal"
	"go.uber.org/zap"
)

type PasswordResetCredential struct {
	UserID      string
	Identifier  string
	DisplayName string
}

// PasswordResetDelivery is what the request flow hands to the delivery path.
// Code is the only plaintext copy of the reset code that leaves the vault.
type PasswordResetDelivery struct {
	RequestID   string
	UserID      string
	Identifier  string
	DisplayName string
	Code        string
	ExpiresAt   time.Time
}

type PasswordResetMetrics struct {
	RequestIssued      int
	RequestUnknown     int
	RequestRateLimited int
	ValidateSuccess    int
	ValidateFailure    int
	FinalizeSuccess    int
	FinalizeFailure    int
}

type PasswordResetEvents struct {
	Request     string
	Validate    string
	Finalize    string
	RateLimited string
}

type PasswordResetErrors struct {
	EngineNotReady           error
	PasswordResetUnavailable error
	PasswordPolicy           error
}

type PasswordResetDeps struct {
	Logger *zap.Logger

	ClientIPFromContext func(context.Context) string
	NewRequestID        func() string

	TryConsume      func(context.Context, string, string) (bool, error)
	MapLimiterError func(error) error

	FindCredential       func(context.Context, string) (PasswordResetCredential, error)
	IsCredentialNotFound func(error) bool
	MapCredentialError   func(error) error
	HashSecret           func(string) (string, error)
	UpdateSecret         func(context.Context, string, string) error
	OnSecretUpdated      func(context.Context, string)

	IssueCode     func(context.Context, string) (string, time.Time, error)
	ValidateCode  func(context.Context, string, string) (bool, error)
	ConsumeCode   func(context.Context, string, string) (bool, error)
	MapVaultError func(error) error

	Deliver func(context.Context, PasswordResetDelivery) bool

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, string, error, func() map[string]string)

	Metrics PasswordResetMetrics
	Events  PasswordResetEvents
	Errors  PasswordResetErrors
}

// RunRequestPasswordReset runs the request step and reports whether a
// credential was found. Rate limiting, unknown identifiers, vault failures on
// the issue branch and delivery failures never produce an error: only
// failures that would happen for every identifier alike are returned.
func RunRequestPasswordReset(ctx context.Context, identifier string, deps PasswordResetDeps) (bool, error) {
	normalizePasswordResetDeps(&deps)

	if deps.TryConsume == nil || deps.FindCredential == nil || deps.IssueCode == nil || deps.Deliver == nil {
		return false, deps.Errors.EngineNotReady
	}

	identifier = internal.NormalizeIdentifier(identifier)
	if identifier == "" {
		deps.EmitAudit(ctx, deps.Events.Request, false, "", "", nil, func() map[string]string {
			return map[string]string{
				"reason": "empty_identifier",
			}
		})
		return false, nil
	}

	ip := deps.ClientIPFromContext(ctx)
	allowed, err := deps.TryConsume(ctx, identifier, ip)
	if err != nil {
		mapped := deps.MapLimiterError(err)
		deps.Logger.Error("password reset limiter unavailable", zap.String("identifier", identifier), zap.Error(err))
		deps.EmitAudit(ctx, deps.Events.Request, false, identifier, "", mapped, nil)
		return false, mapped
	}
	if !allowed {
		deps.MetricInc(deps.Metrics.RequestRateLimited)
		deps.Logger.Info("password reset request rate limited", zap.String("identifier", identifier))
		deps.EmitAudit(ctx, deps.Events.RateLimited, false, identifier, "", nil, func() map[string]string {
			return map[string]string{
				"ip": ip,
			}
		})
		return false, nil
	}

	cred, err := deps.FindCredential(ctx, identifier)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, err
		}
		if !deps.IsCredentialNotFound(err) {
			mapped := deps.MapCredentialError(err)
			deps.Logger.Error("credential lookup failed", zap.String("identifier", identifier), zap.Error(err))
			deps.EmitAudit(ctx, deps.Events.Request, false, identifier, "", mapped, nil)
			return false, mapped
		}

		deps.MetricInc(deps.Metrics.RequestUnknown)
		deps.Logger.Info("password reset requested for unknown identifier", zap.String("identifier", identifier))
		deps.EmitAudit(ctx, deps.Events.Request, true, identifier, "", nil, func() map[string]string {
			return map[string]string{
				"enumeration_safe": "true",
			}
		})
		return false, nil
	}

	code, expiresAt, err := deps.IssueCode(ctx, identifier)
	if err != nil {
		deps.Logger.Error("reset code issue failed", zap.String("identifier", identifier), zap.Error(err))
		deps.EmitAudit(ctx, deps.Events.Request, false, identifier, cred.UserID, deps.MapVaultError(err), nil)
		return true, nil
	}

	requestID := deps.NewRequestID()
	queued := deps.Deliver(ctx, PasswordResetDelivery{
		RequestID:   requestID,
		UserID:      cred.UserID,
		Identifier:  identifier,
		DisplayName: cred.DisplayName,
		Code:        code,
		ExpiresAt:   expiresAt,
	})
	if !queued {
		deps.Logger.Warn("reset code delivery not queued", zap.String("identifier", identifier), zap.String("request_id", requestID))
	}

	deps.MetricInc(deps.Metrics.RequestIssued)
	deps.EmitAudit(ctx, deps.Events.Request, true, identifier, cred.UserID, nil, func() map[string]string {
		return map[string]string{
			"request_id":      requestID,
			"delivery_queued": boolString(queued),
			"expires_at":      expiresAt.UTC().Format(time.RFC3339),
		}
	})
	return true, nil
}

// RunValidateResetToken checks code without consuming it.
func RunValidateResetToken(ctx context.Context, identifier, code string, deps PasswordResetDeps) (bool, error) {
	normalizePasswordResetDeps(&deps)

	if deps.ValidateCode == nil {
		return false, deps.Errors.EngineNotReady
	}

	identifier = internal.NormalizeIdentifier(identifier)
	if identifier == "" {
		deps.MetricInc(deps.Metrics.ValidateFailure)
		return false, nil
	}

	ok, err := deps.ValidateCode(ctx, identifier, code)
	if err != nil {
		mapped := deps.MapVaultError(err)
		deps.Logger.Error("reset code validation unavailable", zap.String("identifier", identifier), zap.Error(err))
		deps.EmitAudit(ctx, deps.Events.Validate, false, identifier, "", mapped, nil)
		return false, mapped
	}

	if ok {
		deps.MetricInc(deps.Metrics.ValidateSuccess)
	} else {
		deps.MetricInc(deps.Metrics.ValidateFailure)
	}
	deps.EmitAudit(ctx, deps.Events.Validate, ok, identifier, "", nil, nil)
	return ok, nil
}

// RunFinalizePasswordReset re-checks the code, hashes the new secret,
// consumes the code and updates the credential, in that order. An invalid,
// expired or already-used code yields false with no error. A secret rejected
// by the hashing policy yields false with the policy error and leaves the
// code usable.
func RunFinalizePasswordReset(ctx context.Context, identifier, code, newSecret string, deps PasswordResetDeps) (bool, error) {
	normalizePasswordResetDeps(&deps)

	if deps.ValidateCode == nil || deps.ConsumeCode == nil || deps.HashSecret == nil || deps.UpdateSecret == nil {
		return false, deps.Errors.EngineNotReady
	}

	identifier = internal.NormalizeIdentifier(identifier)
	if identifier == "" {
		deps.MetricInc(deps.Metrics.FinalizeFailure)
		return false, nil
	}

	fail := func(reason string, err error) {
		deps.MetricInc(deps.Metrics.FinalizeFailure)
		deps.EmitAudit(ctx, deps.Events.Finalize, false, identifier, "", err, func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		})
	}

	ok, err := deps.ValidateCode(ctx, identifier, code)
	if err != nil {
		mapped := deps.MapVaultError(err)
		deps.Logger.Error("reset code validation unavailable", zap.String("identifier", identifier), zap.Error(err))
		fail("vault_unavailable", mapped)
		return false, mapped
	}
	if !ok {
		fail("invalid_code", nil)
		return false, nil
	}

	hash, err := deps.HashSecret(newSecret)
	if err != nil {
		fail("password_policy", deps.Errors.PasswordPolicy)
		return false, deps.Errors.PasswordPolicy
	}

	consumed, err := deps.ConsumeCode(ctx, identifier, code)
	if err != nil {
		mapped := deps.MapVaultError(err)
		deps.Logger.Error("reset code consume unavailable", zap.String("identifier", identifier), zap.Error(err))
		fail("vault_unavailable", mapped)
		return false, mapped
	}
	if !consumed {
		fail("code_already_used", nil)
		return false, nil
	}

	if err := deps.UpdateSecret(ctx, identifier, hash); err != nil {
		if deps.IsCredentialNotFound(err) {
			deps.Logger.Warn("reset finalized for missing credential", zap.String("identifier", identifier))
			fail("credential_missing", nil)
			return false, nil
		}
		mapped := deps.MapCredentialError(err)
		deps.Logger.Error("credential update failed after code consume", zap.String("identifier", identifier), zap.Error(err))
		fail("credential_update_failed", mapped)
		return false, mapped
	}

	deps.OnSecretUpdated(ctx, identifier)
	deps.MetricInc(deps.Metrics.FinalizeSuccess)
	deps.EmitAudit(ctx, deps.Events.Finalize, true, identifier, "", nil, nil)
	return true, nil
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func normalizePasswordResetDeps(deps *PasswordResetDeps) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.NewRequestID == nil {
		deps.NewRequestID = func() string { return "" }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.OnSecretUpdated == nil {
		deps.OnSecretUpdated = func(context.Context, string) {}
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = func(error) error { return deps.Errors.PasswordResetUnavailable }
	}
	if deps.MapVaultError == nil {
		deps.MapVaultError = func(error) error { return deps.Errors.PasswordResetUnavailable }
	}
	if deps.MapCredentialError == nil {
		deps.MapCredentialError = func(error) error { return deps.Errors.PasswordResetUnavailable }
	}
	if deps.IsCredentialNotFound == nil {
		deps.IsCredentialNotFound = func(error) bool { return false }
	}
}
