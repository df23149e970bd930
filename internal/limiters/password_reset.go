package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goReset/internal/rate"
)

var (
	ErrResetLimiterUnavailable = errors.New("reset limiter unavailable")
)

type PasswordResetConfig struct {
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	MaxRequests              int
	MaxRequestsPerIP         int
	Window                   time.Duration
}

// PasswordResetLimiter admits at most MaxRequests reset requests per
// identifier inside any rolling Window, and optionally MaxRequestsPerIP per
// client address.
type PasswordResetLimiter struct {
	window rate.Window
	config PasswordResetConfig
	now    func() time.Time
}

func NewPasswordResetLimiter(window rate.Window, cfg PasswordResetConfig, now func() time.Time) *PasswordResetLimiter {
	if now == nil {
		now = time.Now
	}
	return &PasswordResetLimiter{
		window: window,
		config: cfg,
		now:    now,
	}
}

// TryConsume records a request for identifier (and ip when IP throttling is
// on) and reports whether it is admitted. A denial is not an error.
func (l *PasswordResetLimiter) TryConsume(ctx context.Context, identifier, ip string) (bool, error) {
	if l == nil || l.window == nil {
		return true, nil
	}

	now := l.now()
	if l.config.EnableIPThrottle && ip != "" {
		ok, err := l.window.Allow(ctx, requestIPKey(ip), l.config.MaxRequestsPerIP, l.config.Window, now)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrResetLimiterUnavailable, err)
		}
		if !ok {
			return false, nil
		}
	}
	if l.config.EnableIdentifierThrottle {
		ok, err := l.window.Allow(ctx, requestIdentifierKey(identifier), l.config.MaxRequests, l.config.Window, now)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrResetLimiterUnavailable, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (l *PasswordResetLimiter) Window() time.Duration {
	if l == nil {
		return 0
	}
	return l.config.Window
}

func requestIdentifierKey(identifier string) string {
	return "rpri:" + identifier
}

func requestIPKey(ip string) string {
	return "rprip:" + ip
}
