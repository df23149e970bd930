package goReset

import (
	"errors"
	"strings"
	"time"
)

// Config controls every Engine subsystem. Build a Config from DefaultConfig
// and change only what you need; it is copied by Builder.WithConfig and
// treated as immutable afterwards.
type Config struct {
	Password      PasswordConfig
	PasswordReset PasswordResetConfig
	Delivery      DeliveryConfig
	Registration  RegistrationConfig
	Lockout       LockoutConfig
	Session       SessionConfig
	Storage       StorageConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the argon2id parameters and the minimum secret length
// enforced on registration and reset finalization.
type PasswordConfig struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	UpgradeOnLogin bool
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig controls the reset code lifecycle.
//
// ResetTTL is the code lifetime. MaxRequests requests are admitted per
// identifier inside any rolling Window; MaxRequestsPerIP applies per client
// address when EnableIPThrottle is set. MinResponseTime pads every reset
// operation to a fixed duration so timing does not reveal which branch ran;
// zero disables padding. ExposeFound adds the account-exists bit to
// ResetResponse and must only be enabled for trusted demo deployments.
// SweepInterval is used by long-running hosts that call SweepExpired
// periodically; zero disables the sweeper.
type PasswordResetConfig struct {
	ResetTTL                 time.Duration
	Window                   time.Duration
	MaxRequests              int
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	MaxRequestsPerIP         int
	ExposeFound              bool
	MinResponseTime          time.Duration
	SweepInterval            time.Duration
}

/*
====================================
DELIVERY CONFIG
====================================
*/

// DeliveryConfig controls the asynchronous delivery queue. Timeout bounds a
// single adapter call.
type DeliveryConfig struct {
	Workers    int
	BufferSize int
	Timeout    time.Duration
	DropIfFull bool
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

type RegistrationConfig struct {
	Enabled          bool
	EnableIPThrottle bool
	MaxAttempts      int
	Window           time.Duration
}

// LockoutConfig locks an identifier for login after Threshold failures inside
// Window. A successful reset clears the lock.
type LockoutConfig struct {
	Enabled   bool
	Threshold int
	Window    time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the token returned by Authenticate. When no key is
// configured for ed25519 the builder generates an ephemeral key pair, so
// tokens do not survive a restart.
type SessionConfig struct {
	TTL           time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
STORAGE CONFIG
====================================
*/

type StorageConfig struct {
	RedisPrefix string
}

/*
====================================
AUDIT CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults: 15 minute codes, five
// requests per identifier per hour, a 400ms response floor and a hidden
// found bit.
func DefaultConfig() Config {
	return Config{
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      10,
			UpgradeOnLogin: true,
		},
		PasswordReset: PasswordResetConfig{
			ResetTTL:                 15 * time.Minute,
			Window:                   60 * time.Minute,
			MaxRequests:              5,
			EnableIdentifierThrottle: true,
			EnableIPThrottle:         false,
			MaxRequestsPerIP:         20,
			ExposeFound:              false,
			MinResponseTime:          400 * time.Millisecond,
			SweepInterval:            0,
		},
		Delivery: DeliveryConfig{
			Workers:    2,
			BufferSize: 256,
			Timeout:    5 * time.Second,
			DropIfFull: true,
		},
		Registration: RegistrationConfig{
			Enabled:          true,
			EnableIPThrottle: true,
			MaxAttempts:      5,
			Window:           15 * time.Minute,
		},
		Lockout: LockoutConfig{
			Enabled:   true,
			Threshold: 5,
			Window:    15 * time.Minute,
		},
		Session: SessionConfig{
			TTL:           time.Hour,
			SigningMethod: "ed25519",
		},
		Storage: StorageConfig{
			RedisPrefix: "rpr",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// DemoConfig is DefaultConfig with the found bit exposed, the response floor
// disabled and a low secret length minimum. It reproduces the behavior of a
// trusted single-tenant demo and must not face the internet.
func DemoConfig() Config {
	cfg := DefaultConfig()
	cfg.PasswordReset.ExposeFound = true
	cfg.PasswordReset.MinResponseTime = 0
	cfg.Password.MinLength = 3
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Metrics.Enabled = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Session.PrivateKey = cloneBytes(cfg.Session.PrivateKey)
	out.Session.PublicKey = cloneBytes(cfg.Session.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}

	if c.PasswordReset.ResetTTL <= 0 {
		return errors.New("PasswordReset ResetTTL must be > 0")
	}
	if c.PasswordReset.EnableIdentifierThrottle {
		if c.PasswordReset.MaxRequests <= 0 {
			return errors.New("PasswordReset MaxRequests must be > 0 when the identifier throttle is enabled")
		}
		if c.PasswordReset.Window <= 0 {
			return errors.New("PasswordReset Window must be > 0 when the identifier throttle is enabled")
		}
	}
	if c.PasswordReset.EnableIPThrottle {
		if c.PasswordReset.MaxRequestsPerIP <= 0 {
			return errors.New("PasswordReset MaxRequestsPerIP must be > 0 when the IP throttle is enabled")
		}
		if c.PasswordReset.Window <= 0 {
			return errors.New("PasswordReset Window must be > 0 when the IP throttle is enabled")
		}
	}
	if c.PasswordReset.MinResponseTime < 0 {
		return errors.New("PasswordReset MinResponseTime must be >= 0")
	}
	if c.PasswordReset.MinResponseTime > 5*time.Second {
		return errors.New("PasswordReset MinResponseTime must be <= 5s")
	}
	if c.PasswordReset.SweepInterval < 0 {
		return errors.New("PasswordReset SweepInterval must be >= 0")
	}

	if c.Delivery.Workers <= 0 {
		return errors.New("Delivery Workers must be > 0")
	}
	if c.Delivery.BufferSize <= 0 {
		return errors.New("Delivery BufferSize must be > 0")
	}
	if c.Delivery.Timeout <= 0 {
		return errors.New("Delivery Timeout must be > 0")
	}

	if c.Registration.Enabled && c.Registration.EnableIPThrottle {
		if c.Registration.MaxAttempts <= 0 {
			return errors.New("Registration MaxAttempts must be > 0")
		}
		if c.Registration.Window <= 0 {
			return errors.New("Registration Window must be > 0")
		}
	}

	if c.Lockout.Enabled {
		if c.Lockout.Threshold <= 0 {
			return errors.New("Lockout Threshold must be > 0")
		}
		if c.Lockout.Window <= 0 {
			return errors.New("Lockout Window must be > 0")
		}
	}

	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.SigningMethod != "ed25519" && c.Session.SigningMethod != "hs256" {
		return errors.New("unsupported Session signing method")
	}
	if c.Session.SigningMethod == "hs256" && len(c.Session.PrivateKey) < 32 {
		return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
	}
	if c.Session.Leeway < 0 || c.Session.Leeway > 2*time.Minute {
		return errors.New("Session Leeway must be within [0, 2m]")
	}
	if c.Session.Audience != "" && strings.TrimSpace(c.Session.Audience) == "" {
		return errors.New("Session Audience must not be blank")
	}

	if strings.TrimSpace(c.Storage.RedisPrefix) == "" {
		return errors.New("Storage RedisPrefix is required")
	}

	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	return nil
}

/*
====================================
LINT
====================================
*/

// LintWarning is a setting that is valid but risky.
type LintWarning struct {
	Code    string
	Message string
}

type LintWarnings []LintWarning

func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// Lint returns warnings for settings that weaken the anti-enumeration or
// brute-force guarantees. It never fails; call Validate for hard errors.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings

	if c.PasswordReset.ExposeFound {
		ws = append(ws, LintWarning{
			Code:    "expose_found",
			Message: "PasswordReset ExposeFound reveals whether an account exists",
		})
	}
	if c.PasswordReset.MinResponseTime == 0 {
		ws = append(ws, LintWarning{
			Code:    "response_floor_disabled",
			Message: "PasswordReset MinResponseTime is 0; response timing may reveal account existence",
		})
	}
	if !c.PasswordReset.EnableIdentifierThrottle {
		ws = append(ws, LintWarning{
			Code:    "reset_throttle_disabled",
			Message: "PasswordReset identifier throttle is disabled",
		})
	}
	if c.PasswordReset.ResetTTL > 15*time.Minute {
		ws = append(ws, LintWarning{
			Code:    "reset_ttl_long",
			Message: "PasswordReset ResetTTL above 15m widens the guessing window for 6 digit codes",
		})
	}
	if !c.Lockout.Enabled {
		ws = append(ws, LintWarning{
			Code:    "lockout_disabled",
			Message: "Login lockout is disabled",
		})
	}
	if c.Session.SigningMethod == "ed25519" && len(c.Session.PrivateKey) == 0 && len(c.Session.PublicKey) == 0 {
		ws = append(ws, LintWarning{
			Code:    "session_key_ephemeral",
			Message: "no session key configured; an ephemeral key will be generated at build time",
		})
	}
	if c.Delivery.DropIfFull && c.Delivery.BufferSize < 16 {
		ws = append(ws, LintWarning{
			Code:    "delivery_buffer_small",
			Message: "Delivery BufferSize is small and DropIfFull may silently drop codes under load",
		})
	}

	return ws
}
