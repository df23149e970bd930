package goReset

import (
	"context"
	"time"

	internalaudit "github.com/MrEthical07/goReset/internal/audit"
	"github.com/MrEthical07/goReset/internal/dispatch"
	internalflows "github.com/MrEthical07/goReset/internal/flows"
	"github.com/MrEthical07/goReset/internal/limiters"
	"github.com/MrEthical07/goReset/internal/vault"
	"github.com/MrEthical07/goReset/jwt"
	"github.com/MrEthical07/goReset/password"
	"go.uber.org/zap"
)

// Engine runs the password reset lifecycle and the account operations around
// it. Build one with New().Build(); all methods are safe for concurrent use.
type Engine struct {
	config       Config
	logger       *zap.Logger
	now          func() time.Time
	store        CredentialStore
	vault        *vault.Vault
	resetLimiter *limiters.PasswordResetLimiter
	regLimiter   *limiters.RegistrationLimiter
	lockout      *limiters.LoginLockout
	adapter      DeliveryAdapter
	delivery     *dispatch.Queue[DeliveryMessage]
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	passwordHash *password.Argon2
	jwtManager   *jwt.Manager
	flows        internalflows.Service
}

// Close stops accepting deliveries, drains queued deliveries and then the
// audit queue. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.delivery != nil {
		e.delivery.Close()
	}
	if e.audit != nil {
		e.audit.Close()
	}
	_ = e.logger.Sync()
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// DeliveryDropped reports deliveries rejected because the queue was full.
func (e *Engine) DeliveryDropped() uint64 {
	if e == nil || e.delivery == nil {
		return 0
	}
	return e.delivery.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// SweepExpired removes every expired reset record and returns how many were
// removed. Expired records are also dropped lazily on access, so sweeping
// only bounds storage.
func (e *Engine) SweepExpired(ctx context.Context) (int, error) {
	if e == nil || e.vault == nil {
		return 0, ErrEngineNotReady
	}
	n, err := e.vault.Sweep(ctx)
	if err != nil {
		e.logger.Error("reset sweep failed", zap.Error(err))
		return n, ErrPasswordResetUnavailable
	}
	if n > 0 {
		e.logger.Debug("reset sweep removed expired records", zap.Int("removed", n))
	}
	return n, nil
}

// RunSweeper calls SweepExpired every PasswordReset.SweepInterval until ctx
// is done. It returns immediately when the interval is zero.
func (e *Engine) RunSweeper(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}
	interval := e.config.PasswordReset.SweepInterval
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, _ = e.SweepExpired(ctx)
		}
	}
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) buildFlows() internalflows.Service {
	return internalflows.New(internalflows.Deps{
		PasswordReset: e.passwordResetFlowDeps(),
		Account:       e.accountFlowDeps(),
		Login:         e.loginFlowDeps(),
		Session:       e.sessionFlowDeps(),
	})
}
