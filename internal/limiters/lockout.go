package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goReset/internal/rate"
)

// LoginLockoutConfig holds configuration for the failed-login throttle.
type LoginLockoutConfig struct {
	Enabled   bool
	Threshold int
	Window    time.Duration
}

var (
	// ErrLoginLocked indicates the identifier has too many recent failures.
	ErrLoginLocked = errors.New("login temporarily locked")
	// ErrLockoutUnavailable indicates the lockout backend is unreachable.
	ErrLockoutUnavailable = errors.New("lockout backend unavailable")
)

// LoginLockout counts failed logins per identifier in a rolling window and
// locks the identifier once Threshold failures are inside it.
type LoginLockout struct {
	window rate.Window
	config LoginLockoutConfig
	now    func() time.Time
}

// NewLoginLockout creates a new lockout limiter.
func NewLoginLockout(window rate.Window, cfg LoginLockoutConfig, now func() time.Time) *LoginLockout {
	if now == nil {
		now = time.Now
	}
	return &LoginLockout{window: window, config: cfg, now: now}
}

func (l *LoginLockout) key(identifier string) string {
	return "rlo:" + identifier
}

func (l *LoginLockout) enabled() bool {
	return l != nil && l.window != nil && l.config.Enabled && l.config.Threshold > 0
}

// Check returns ErrLoginLocked while the failure count is at the threshold.
func (l *LoginLockout) Check(ctx context.Context, identifier string) error {
	if !l.enabled() {
		return nil
	}

	n, err := l.window.Count(ctx, l.key(identifier), l.config.Window, l.now())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if n >= l.config.Threshold {
		return ErrLoginLocked
	}
	return nil
}

// RecordFailure logs a failed attempt.
func (l *LoginLockout) RecordFailure(ctx context.Context, identifier string) error {
	if !l.enabled() {
		return nil
	}

	if _, err := l.window.Allow(ctx, l.key(identifier), l.config.Threshold, l.config.Window, l.now()); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// Reset clears the failure log after a successful login or password reset.
func (l *LoginLockout) Reset(ctx context.Context, identifier string) error {
	if !l.enabled() {
		return nil
	}

	if err := l.window.Reset(ctx, l.key(identifier)); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}
