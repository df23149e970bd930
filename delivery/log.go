package delivery

import (
	"context"

	goReset "github.com/MrEthical07/goReset"
	"go.uber.org/zap"
)

// LogAdapter logs that a code was issued instead of sending it. With
// RevealCode the code itself is logged, which is only acceptable for a
// local demo.
type LogAdapter struct {
	logger     *zap.Logger
	revealCode bool
}

type LogAdapterConfig struct {
	RevealCode bool
}

func NewLogAdapter(logger *zap.Logger, cfg LogAdapterConfig) *LogAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogAdapter{
		logger:     logger.Named("delivery"),
		revealCode: cfg.RevealCode,
	}
}

func (a *LogAdapter) Deliver(_ context.Context, msg goReset.DeliveryMessage) error {
	fields := []zap.Field{
		zap.String("identifier", msg.Identifier),
		zap.String("request_id", msg.RequestID),
		zap.Time("expires_at", msg.ExpiresAt),
	}
	if a.revealCode {
		fields = append(fields, zap.String("code", msg.Code))
	}
	a.logger.Info("reset code issued", fields...)
	return nil
}

// Func adapts a function to goReset.DeliveryAdapter.
type Func = goReset.DeliveryFunc
