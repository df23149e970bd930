package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goReset/internal/rate"
)

var (
	ErrRegistrationRateLimited = errors.New("registration rate limited")
	ErrRegistrationUnavailable = errors.New("registration limiter unavailable")
)

type RegistrationConfig struct {
	EnableIPThrottle bool
	MaxAttempts      int
	Window           time.Duration
}

// RegistrationLimiter throttles sign-ups per client address.
type RegistrationLimiter struct {
	window rate.Window
	config RegistrationConfig
	now    func() time.Time
}

func NewRegistrationLimiter(window rate.Window, cfg RegistrationConfig, now func() time.Time) *RegistrationLimiter {
	if now == nil {
		now = time.Now
	}
	return &RegistrationLimiter{
		window: window,
		config: cfg,
		now:    now,
	}
}

func (l *RegistrationLimiter) Enforce(ctx context.Context, ip string) error {
	if l == nil || l.window == nil || !l.config.EnableIPThrottle || ip == "" {
		return nil
	}

	ok, err := l.window.Allow(ctx, registrationIPKey(ip), l.config.MaxAttempts, l.config.Window, l.now())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegistrationUnavailable, err)
	}
	if !ok {
		return ErrRegistrationRateLimited
	}
	return nil
}

func registrationIPKey(ip string) string {
	return "rregip:" + ip
}
