// Package vault issues, checks and revokes password reset codes. It holds
// at most one active code per identifier and never retains a plaintext
// code after Issue returns.
package vault

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goReset/internal"
	"github.com/MrEthical07/goReset/internal/stores"
)

var (
	// ErrUnavailable wraps storage or entropy failures.
	ErrUnavailable = errors.New("reset vault unavailable")

	errMismatch = errors.New("reset code mismatch")
	errExpired  = errors.New("reset code expired")
)

// Store is the persistence contract the vault needs. Both
// stores.PasswordResetStore and stores.MemoryResetStore satisfy it.
type Store interface {
	Save(ctx context.Context, record *stores.ResetRecord, ttl time.Duration) error
	Get(ctx context.Context, identifier string) (*stores.ResetRecord, error)
	Consume(ctx context.Context, identifier string, check stores.ConsumeCheck) (*stores.ResetRecord, error)
	Delete(ctx context.Context, identifier string) error
	Sweep(ctx context.Context, now time.Time) (int, error)
}

type Config struct {
	TTL time.Duration
	Now func() time.Time
}

type Vault struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func New(store Store, cfg Config) *Vault {
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Vault{
		store: store,
		ttl:   cfg.TTL,
		now:   cfg.Now,
	}
}

// Issue creates a fresh code for identifier, replacing any active one, and
// returns the plaintext code with its expiry. This is the only place the
// plaintext is ever returned.
func (v *Vault) Issue(ctx context.Context, identifier string) (string, time.Time, error) {
	code, err := internal.NewResetCode()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	salt, err := internal.NewResetSalt()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	issuedAt := v.now()
	expiresAt := issuedAt.Add(v.ttl)
	record := &stores.ResetRecord{
		Identifier: identifier,
		TokenHash:  internal.HashResetCode(code, salt),
		Salt:       salt,
		IssuedAt:   issuedAt.UnixNano(),
		ExpiresAt:  expiresAt.UnixNano(),
	}

	if err := v.store.Save(ctx, record, v.ttl); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return code, expiresAt, nil
}

// Validate reports whether code matches the active record for identifier.
// It does not consume the record. An expired record is removed.
func (v *Vault) Validate(ctx context.Context, identifier, code string) (bool, error) {
	if !internal.IsResetCode(code) {
		return false, nil
	}

	record, err := v.store.Get(ctx, identifier)
	if err != nil {
		if errors.Is(err, stores.ErrResetNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if record.Expired(v.now()) {
		v.dropExpired(ctx, identifier, record.TokenHash)
		return false, nil
	}

	return matches(record, code), nil
}

// Consume checks code and deletes the record in one step. When several
// callers race with the same valid code exactly one gets true.
func (v *Vault) Consume(ctx context.Context, identifier, code string) (bool, error) {
	if !internal.IsResetCode(code) {
		return false, nil
	}

	now := v.now()
	_, err := v.store.Consume(ctx, identifier, func(record *stores.ResetRecord) error {
		if record.Expired(now) {
			return &stores.DeleteRecordError{Err: errExpired}
		}
		if !matches(record, code) {
			return errMismatch
		}
		return nil
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, stores.ErrResetNotFound),
		errors.Is(err, stores.ErrResetContention),
		errors.Is(err, errExpired),
		errors.Is(err, errMismatch):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

// Invalidate removes any record for identifier.
func (v *Vault) Invalidate(ctx context.Context, identifier string) error {
	if err := v.store.Delete(ctx, identifier); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Sweep removes every expired record and returns how many were removed.
func (v *Vault) Sweep(ctx context.Context) (int, error) {
	n, err := v.store.Sweep(ctx, v.now())
	if err != nil {
		return n, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}

// dropExpired deletes the record only if it is still the one that was read,
// so a code issued concurrently is never removed by a stale check.
func (v *Vault) dropExpired(ctx context.Context, identifier string, seen [32]byte) {
	_, _ = v.store.Consume(ctx, identifier, func(record *stores.ResetRecord) error {
		if record.TokenHash != seen {
			return errMismatch
		}
		return nil
	})
}

func matches(record *stores.ResetRecord, code string) bool {
	computed := internal.HashResetCode(code, record.Salt)
	return subtle.ConstantTimeCompare(computed[:], record.TokenHash[:]) == 1
}
