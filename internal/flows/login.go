package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goReset/internal"
	"go.uber.org/zap"
)

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess int
	LoginFailure int
	LoginLocked  int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	Login string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	LoginLocked        error
	LoginUnavailable   error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	SecretUpgradeOnLogin bool

	Logger *zap.Logger

	CheckLockout  func(context.Context, string) error
	RecordFailure func(context.Context, string) error
	ResetLockout  func(context.Context, string) error
	MapLockoutErr func(error) error

	FindCredential       func(context.Context, string) (AccountRecord, error)
	IsCredentialNotFound func(error) bool
	UpdateSecret         func(context.Context, string, string) error

	VerifySecret       func(string, string) (bool, error)
	SecretNeedsUpgrade func(string) (bool, error)
	HashSecret         func(string) (string, error)
	DummyVerify        func(string)

	IssueSessionToken func(context.Context, AccountRecord) (string, error)

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, string, error, func() map[string]string)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunAuthenticate checks identifier and secret and returns a signed session
// token. Unknown identifiers and wrong secrets both yield InvalidCredentials;
// the unknown branch still pays for a hash verification.
func RunAuthenticate(ctx context.Context, identifier, secret string, deps LoginDeps) (string, error) {
	normalizeLoginDeps(&deps)

	if deps.FindCredential == nil || deps.VerifySecret == nil || deps.IssueSessionToken == nil {
		return "", deps.Errors.EngineNotReady
	}

	identifier = internal.NormalizeIdentifier(identifier)
	if identifier == "" || secret == "" {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.Login, false, identifier, "", deps.Errors.InvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "empty_input",
			}
		})
		return "", deps.Errors.InvalidCredentials
	}

	if err := deps.CheckLockout(ctx, identifier); err != nil {
		mapped := deps.MapLockoutErr(err)
		if errors.Is(mapped, deps.Errors.LoginLocked) {
			deps.MetricInc(deps.Metrics.LoginLocked)
		} else {
			deps.Logger.Error("login lockout unavailable", zap.Error(err))
		}
		deps.EmitAudit(ctx, deps.Events.Login, false, identifier, "", mapped, nil)
		return "", mapped
	}

	fail := func(reason string) (string, error) {
		if err := deps.RecordFailure(ctx, identifier); err != nil {
			deps.Logger.Warn("login failure not recorded", zap.String("identifier", identifier), zap.Error(err))
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.Login, false, identifier, "", deps.Errors.InvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		})
		return "", deps.Errors.InvalidCredentials
	}

	record, err := deps.FindCredential(ctx, identifier)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		if !deps.IsCredentialNotFound(err) {
			deps.Logger.Error("credential lookup failed", zap.String("identifier", identifier), zap.Error(err))
			deps.EmitAudit(ctx, deps.Events.Login, false, identifier, "", deps.Errors.LoginUnavailable, nil)
			return "", deps.Errors.LoginUnavailable
		}
		deps.DummyVerify(secret)
		return fail("unknown_identifier")
	}

	ok, err := deps.VerifySecret(secret, record.SecretHash)
	if err != nil {
		deps.Logger.Error("stored secret hash unreadable", zap.String("identifier", identifier), zap.Error(err))
		return fail("hash_unreadable")
	}
	if !ok {
		return fail("secret_mismatch")
	}

	if deps.SecretUpgradeOnLogin && deps.SecretNeedsUpgrade != nil && deps.HashSecret != nil && deps.UpdateSecret != nil {
		if upgrade, err := deps.SecretNeedsUpgrade(record.SecretHash); err == nil && upgrade {
			if hash, err := deps.HashSecret(secret); err == nil {
				if err := deps.UpdateSecret(ctx, identifier, hash); err != nil {
					deps.Logger.Warn("secret hash upgrade failed", zap.String("identifier", identifier), zap.Error(err))
				} else {
					record.SecretHash = hash
				}
			}
		}
	}

	token, err := deps.IssueSessionToken(ctx, record)
	if err != nil {
		deps.Logger.Error("session token issue failed", zap.String("identifier", identifier), zap.Error(err))
		deps.EmitAudit(ctx, deps.Events.Login, false, identifier, record.UserID, deps.Errors.LoginUnavailable, nil)
		return "", deps.Errors.LoginUnavailable
	}

	if err := deps.ResetLockout(ctx, identifier); err != nil {
		deps.Logger.Warn("login lockout reset failed", zap.String("identifier", identifier), zap.Error(err))
	}
	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.Login, true, identifier, record.UserID, nil, nil)
	return token, nil
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.CheckLockout == nil {
		deps.CheckLockout = func(context.Context, string) error { return nil }
	}
	if deps.RecordFailure == nil {
		deps.RecordFailure = func(context.Context, string) error { return nil }
	}
	if deps.ResetLockout == nil {
		deps.ResetLockout = func(context.Context, string) error { return nil }
	}
	if deps.MapLockoutErr == nil {
		deps.MapLockoutErr = func(error) error { return deps.Errors.LoginUnavailable }
	}
	if deps.IsCredentialNotFound == nil {
		deps.IsCredentialNotFound = func(error) bool { return false }
	}
	if deps.DummyVerify == nil {
		deps.DummyVerify = func(string) {}
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
}
