package goReset

import (
	"context"
	"errors"
)

const (
	auditEventPasswordResetRequest     = "password_reset_request"
	auditEventPasswordResetValidate    = "password_reset_validate"
	auditEventPasswordResetFinalize    = "password_reset_finalize"
	auditEventPasswordResetRateLimited = "password_reset_rate_limited"
	auditEventPasswordResetDelivery    = "password_reset_delivery"
	auditEventAccountRegister          = "account_register"
	auditEventAccountLogin             = "account_login"
)

// AuditErrorCode is the stable error label written to AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrLoginLocked        AuditErrorCode = "login_locked"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrInvalidRequest     AuditErrorCode = "invalid_request"
	auditErrSessionInvalid     AuditErrorCode = "session_invalid"
	auditErrDeliveryTimeout    AuditErrorCode = "delivery_timeout"
	auditErrDeliveryFailed     AuditErrorCode = "delivery_failed"
	auditErrDeliveryDropped    AuditErrorCode = "delivery_dropped"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

var (
	errDeliveryFailed  = errors.New("reset code delivery failed")
	errDeliveryDropped = errors.New("reset code delivery dropped")
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	identifier string,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:  e.now().UTC(),
		EventType:  eventType,
		RequestID:  metadata["request_id"],
		Identifier: identifier,
		UserID:     userID,
		IP:         clientIPFromContext(ctx),
		Success:    success,
		Metadata:   metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginLocked):
		return auditErrLoginLocked
	case errors.Is(err, ErrRegistrationRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrCredentialExists):
		return auditErrDuplicate
	case errors.Is(err, ErrRegistrationInvalid),
		errors.Is(err, ErrRegistrationDisabled):
		return auditErrInvalidRequest
	case errors.Is(err, ErrSessionInvalid):
		return auditErrSessionInvalid
	case errors.Is(err, context.DeadlineExceeded):
		return auditErrDeliveryTimeout
	case errors.Is(err, errDeliveryDropped):
		return auditErrDeliveryDropped
	case errors.Is(err, errDeliveryFailed):
		return auditErrDeliveryFailed
	case errors.Is(err, ErrPasswordResetUnavailable),
		errors.Is(err, ErrLoginUnavailable),
		errors.Is(err, ErrRegistrationUnavailable),
		errors.Is(err, ErrSessionUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
