package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goReset/internal"
	"go.uber.org/zap"
)

type AccountRegisterRequest struct {
	Identifier  string
	DisplayName string
	Secret      string
}

// AccountRecord is the flow-local credential model used by register and login.
type AccountRecord struct {
	UserID      string
	Identifier  string
	DisplayName string
	SecretHash  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type AccountMetrics struct {
	RegisterSuccess     int
	RegisterDuplicate   int
	RegisterRateLimited int
}

type AccountEvents struct {
	Register string
}

type AccountErrors struct {
	EngineNotReady          error
	RegistrationInvalid     error
	RegistrationRateLimited error
	RegistrationUnavailable error
	PasswordPolicy          error
	CredentialExists        error
}

type AccountDeps struct {
	Logger *zap.Logger

	ClientIPFromContext func(context.Context) string
	Now                 func() time.Time
	NewUserID           func() string

	EnforceRegistrationLimiter func(context.Context, string) error
	MapLimiterError            func(error) error

	HashSecret         func(string) (string, error)
	CreateCredential   func(context.Context, AccountRecord) error
	IsDuplicate        func(error) bool
	MapCredentialError func(error) error

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, string, error, func() map[string]string)

	Metrics AccountMetrics
	Events  AccountEvents
	Errors  AccountErrors
}

// RunRegister creates a credential with a freshly hashed secret. The secret
// is never stored or logged in plaintext.
func RunRegister(ctx context.Context, req AccountRegisterRequest, deps AccountDeps) (AccountRecord, error) {
	normalizeAccountDeps(&deps)

	if deps.HashSecret == nil || deps.CreateCredential == nil || deps.NewUserID == nil {
		return AccountRecord{}, deps.Errors.EngineNotReady
	}

	identifier := internal.NormalizeIdentifier(req.Identifier)
	if identifier == "" {
		deps.EmitAudit(ctx, deps.Events.Register, false, "", "", deps.Errors.RegistrationInvalid, func() map[string]string {
			return map[string]string{
				"reason": "empty_identifier",
			}
		})
		return AccountRecord{}, deps.Errors.RegistrationInvalid
	}
	if req.Secret == "" {
		deps.EmitAudit(ctx, deps.Events.Register, false, identifier, "", deps.Errors.PasswordPolicy, func() map[string]string {
			return map[string]string{
				"reason": "empty_secret",
			}
		})
		return AccountRecord{}, deps.Errors.PasswordPolicy
	}

	if deps.EnforceRegistrationLimiter != nil {
		if err := deps.EnforceRegistrationLimiter(ctx, deps.ClientIPFromContext(ctx)); err != nil {
			mapped := deps.MapLimiterError(err)
			if errors.Is(mapped, deps.Errors.RegistrationRateLimited) {
				deps.MetricInc(deps.Metrics.RegisterRateLimited)
			} else {
				deps.Logger.Error("registration limiter unavailable", zap.Error(err))
			}
			deps.EmitAudit(ctx, deps.Events.Register, false, identifier, "", mapped, nil)
			return AccountRecord{}, mapped
		}
	}

	hash, err := deps.HashSecret(req.Secret)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.Register, false, identifier, "", deps.Errors.PasswordPolicy, func() map[string]string {
			return map[string]string{
				"reason": "hash_policy",
			}
		})
		return AccountRecord{}, deps.Errors.PasswordPolicy
	}

	now := deps.Now().UTC()
	record := AccountRecord{
		UserID:      deps.NewUserID(),
		Identifier:  identifier,
		DisplayName: req.DisplayName,
		SecretHash:  hash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := deps.CreateCredential(ctx, record); err != nil {
		if deps.IsDuplicate(err) {
			deps.MetricInc(deps.Metrics.RegisterDuplicate)
			deps.EmitAudit(ctx, deps.Events.Register, false, identifier, "", deps.Errors.CredentialExists, func() map[string]string {
				return map[string]string{
					"reason": "duplicate_identifier",
				}
			})
			return AccountRecord{}, deps.Errors.CredentialExists
		}
		mapped := deps.MapCredentialError(err)
		deps.Logger.Error("credential create failed", zap.String("identifier", identifier), zap.Error(err))
		deps.EmitAudit(ctx, deps.Events.Register, false, identifier, "", mapped, nil)
		return AccountRecord{}, mapped
	}

	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.EmitAudit(ctx, deps.Events.Register, true, identifier, record.UserID, nil, nil)
	return record, nil
}

func normalizeAccountDeps(deps *AccountDeps) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = func(error) error { return deps.Errors.RegistrationUnavailable }
	}
	if deps.MapCredentialError == nil {
		deps.MapCredentialError = func(error) error { return deps.Errors.RegistrationUnavailable }
	}
	if deps.IsDuplicate == nil {
		deps.IsDuplicate = func(error) bool { return false }
	}
}
