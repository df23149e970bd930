package goReset

import (
	"context"
	"errors"
	"fmt"

	internalflows "github.com/MrEthical07/goReset/internal/flows"
	"go.uber.org/zap"
)

// enqueueDelivery hands a freshly issued code to the delivery queue. It
// never waits for the adapter.
func (e *Engine) enqueueDelivery(ctx context.Context, d internalflows.PasswordResetDelivery) bool {
	msg := DeliveryMessage{
		RequestID:   d.RequestID,
		UserID:      d.UserID,
		Identifier:  d.Identifier,
		DisplayName: d.DisplayName,
		Code:        d.Code,
		ExpiresAt:   d.ExpiresAt,
	}

	if e.delivery.Submit(ctx, msg) {
		return true
	}

	e.metricInc(MetricDeliveryDropped)
	e.emitAudit(ctx, auditEventPasswordResetDelivery, false, msg.Identifier, msg.UserID, errDeliveryDropped, func() map[string]string {
		return map[string]string{
			"request_id": msg.RequestID,
		}
	})
	return false
}

// runDelivery is the delivery queue handler.
func (e *Engine) runDelivery(ctx context.Context, msg DeliveryMessage) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Delivery.Timeout)
	defer cancel()

	err := e.callAdapter(ctx, msg)
	if err == nil {
		e.metricInc(MetricDeliverySuccess)
		e.logger.Debug("reset code delivered",
			zap.String("identifier", msg.Identifier),
			zap.String("request_id", msg.RequestID),
		)
		e.emitAudit(ctx, auditEventPasswordResetDelivery, true, msg.Identifier, msg.UserID, nil, func() map[string]string {
			return map[string]string{
				"request_id": msg.RequestID,
			}
		})
		return
	}

	e.metricInc(MetricDeliveryFailure)
	e.logger.Warn("reset code delivery failed",
		zap.String("identifier", msg.Identifier),
		zap.String("request_id", msg.RequestID),
		zap.Error(err),
	)
	auditErr := err
	if !errors.Is(err, context.DeadlineExceeded) {
		auditErr = errDeliveryFailed
	}
	e.emitAudit(ctx, auditEventPasswordResetDelivery, false, msg.Identifier, msg.UserID, auditErr, func() map[string]string {
		return map[string]string{
			"request_id": msg.RequestID,
		}
	})
}

// callAdapter turns an adapter panic into an error so one bad message cannot
// take down a delivery worker.
func (e *Engine) callAdapter(ctx context.Context, msg DeliveryMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delivery adapter panic: %v", r)
		}
	}()
	return e.adapter.Deliver(ctx, msg)
}
