package goReset

import (
	"context"
	"errors"
	"time"

	internalflows "github.com/MrEthical07/goReset/internal/flows"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestPasswordReset starts a reset for identifier. When the identifier
// belongs to a credential and the request is within the rate limit, a fresh
// six digit code replaces any previous one and is queued for delivery.
//
// The response is the same for known, unknown and rate-limited identifiers.
// Errors are returned only for failures that would hit every identifier
// alike: engine not ready, limiter or credential backend down, or ctx done.
func (e *Engine) RequestPasswordReset(ctx context.Context, identifier string) (ResetResponse, error) {
	if e == nil || !e.flows.Initialized() {
		return ResetResponse{}, ErrEngineNotReady
	}
	defer e.padResponse(ctx, time.Now())

	e.metricInc(MetricResetRequest)
	found, err := e.flows.RequestPasswordReset(ctx, identifier)
	if err != nil {
		return ResetResponse{}, err
	}

	resp := ResetResponse{Message: GenericResetMessage}
	if e.config.PasswordReset.ExposeFound {
		resp.Found = found
	}
	return resp, nil
}

// ValidateResetToken reports whether code is the active, unexpired code for
// identifier. It does not consume the code.
func (e *Engine) ValidateResetToken(ctx context.Context, identifier, code string) (bool, error) {
	if e == nil || !e.flows.Initialized() {
		return false, ErrEngineNotReady
	}
	defer e.padResponse(ctx, time.Now())

	return e.flows.ValidateResetToken(ctx, identifier, code)
}

// FinalizePasswordReset replaces the secret for identifier when code is
// valid. The code is consumed before the secret is written, so of several
// concurrent calls with the same code at most one returns true. An invalid,
// expired or used code returns false with a nil error; a newSecret rejected
// by the password policy returns false with ErrPasswordPolicy and leaves
// the code usable.
func (e *Engine) FinalizePasswordReset(ctx context.Context, identifier, code, newSecret string) (bool, error) {
	if e == nil || !e.flows.Initialized() {
		return false, ErrEngineNotReady
	}
	defer e.padResponse(ctx, time.Now())

	return e.flows.FinalizePasswordReset(ctx, identifier, code, newSecret)
}

// padResponse records the work latency and then waits until MinResponseTime
// has passed since start, or ctx is done.
func (e *Engine) padResponse(ctx context.Context, start time.Time) {
	elapsed := time.Since(start)
	e.metrics.Observe(MetricResetLatency, elapsed)

	floor := e.config.PasswordReset.MinResponseTime
	if floor <= elapsed {
		return
	}

	timer := time.NewTimer(floor - elapsed)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (e *Engine) passwordResetFlowDeps() internalflows.PasswordResetDeps {
	return internalflows.PasswordResetDeps{
		Logger:              e.logger,
		ClientIPFromContext: clientIPFromContext,
		NewRequestID:        uuid.NewString,
		TryConsume:          e.resetLimiter.TryConsume,
		MapLimiterError:     mapPasswordResetBackendError,
		FindCredential: func(ctx context.Context, identifier string) (internalflows.PasswordResetCredential, error) {
			record, err := e.store.FindCredential(ctx, identifier)
			if err != nil {
				return internalflows.PasswordResetCredential{}, err
			}
			return internalflows.PasswordResetCredential{
				UserID:      record.UserID,
				Identifier:  record.Identifier,
				DisplayName: record.DisplayName,
			}, nil
		},
		IsCredentialNotFound: isCredentialNotFound,
		MapCredentialError:   mapPasswordResetBackendError,
		HashSecret:           e.passwordHash.Hash,
		UpdateSecret:         e.store.UpdateSecret,
		OnSecretUpdated: func(ctx context.Context, identifier string) {
			if err := e.lockout.Reset(ctx, identifier); err != nil {
				e.logger.Warn("login lockout reset after password reset failed", zap.String("identifier", identifier), zap.Error(err))
			}
		},
		IssueCode:     e.vault.Issue,
		ValidateCode:  e.vault.Validate,
		ConsumeCode:   e.vault.Consume,
		MapVaultError: mapPasswordResetBackendError,
		Deliver:       e.enqueueDelivery,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Metrics: internalflows.PasswordResetMetrics{
			RequestIssued:      int(MetricResetIssued),
			RequestUnknown:     int(MetricResetUnknown),
			RequestRateLimited: int(MetricResetRateLimited),
			ValidateSuccess:    int(MetricResetValidateSuccess),
			ValidateFailure:    int(MetricResetValidateFailure),
			FinalizeSuccess:    int(MetricResetFinalizeSuccess),
			FinalizeFailure:    int(MetricResetFinalizeFailure),
		},
		Events: internalflows.PasswordResetEvents{
			Request:     auditEventPasswordResetRequest,
			Validate:    auditEventPasswordResetValidate,
			Finalize:    auditEventPasswordResetFinalize,
			RateLimited: auditEventPasswordResetRateLimited,
		},
		Errors: internalflows.PasswordResetErrors{
			EngineNotReady:           ErrEngineNotReady,
			PasswordResetUnavailable: ErrPasswordResetUnavailable,
			PasswordPolicy:           ErrPasswordPolicy,
		},
	}
}

func isCredentialNotFound(err error) bool {
	return errors.Is(err, ErrCredentialNotFound)
}

func mapPasswordResetBackendError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return ErrPasswordResetUnavailable
}
