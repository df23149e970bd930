package goReset

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"time"

	internalaudit "github.com/MrEthical07/goReset/internal/audit"
	"github.com/MrEthical07/goReset/internal/dispatch"
	"github.com/MrEthical07/goReset/internal/limiters"
	"github.com/MrEthical07/goReset/internal/rate"
	"github.com/MrEthical07/goReset/internal/stores"
	"github.com/MrEthical07/goReset/internal/vault"
	"github.com/MrEthical07/goReset/jwt"
	"github.com/MrEthical07/goReset/password"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an Engine. A Builder can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store     CredentialStore
	delivery  DeliveryAdapter
	auditSink AuditSink
	logger    *zap.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis stores reset records and rate limit windows in Redis. Without
// it the engine keeps them in process memory, which only suits a single
// instance.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

func (b *Builder) WithDeliveryAdapter(adapter DeliveryAdapter) *Builder {
	b.delivery = adapter
	return b
}

// WithAuditSink sets the audit destination. Audit must also be enabled in
// Config.Audit.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now for code expiry, rate windows and session
// tokens. The response floor always uses the wall clock.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every subsystem.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	if b.delivery == nil {
		return nil, errors.New("delivery adapter required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("goreset")

	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- STORAGE --------
	var (
		resetStore vault.Store
		window     rate.Window
	)
	if b.redis != nil {
		resetStore = stores.NewPasswordResetStore(b.redis, cfg.Storage.RedisPrefix)
		window = rate.NewRedisWindow(b.redis)
	} else {
		logger.Warn("no redis client configured; reset records and rate limits are kept in memory")
		resetStore = stores.NewMemoryResetStore()
		window = rate.NewMemoryWindow()
	}

	engine := &Engine{
		config: cloneConfig(cfg),
		logger: logger,
		now:    now,
		store:  b.store,
		vault: vault.New(resetStore, vault.Config{
			TTL: cfg.PasswordReset.ResetTTL,
			Now: now,
		}),
		adapter: b.delivery,
		metrics: NewMetrics(cfg.Metrics),
	}

	// -------- LIMITERS --------
	engine.resetLimiter = limiters.NewPasswordResetLimiter(window, limiters.PasswordResetConfig{
		EnableIdentifierThrottle: cfg.PasswordReset.EnableIdentifierThrottle,
		EnableIPThrottle:         cfg.PasswordReset.EnableIPThrottle,
		MaxRequests:              cfg.PasswordReset.MaxRequests,
		MaxRequestsPerIP:         cfg.PasswordReset.MaxRequestsPerIP,
		Window:                   cfg.PasswordReset.Window,
	}, now)
	engine.regLimiter = limiters.NewRegistrationLimiter(window, limiters.RegistrationConfig{
		EnableIPThrottle: cfg.Registration.EnableIPThrottle,
		MaxAttempts:      cfg.Registration.MaxAttempts,
		Window:           cfg.Registration.Window,
	}, now)
	engine.lockout = limiters.NewLoginLockout(window, limiters.LoginLockoutConfig{
		Enabled:   cfg.Lockout.Enabled,
		Threshold: cfg.Lockout.Threshold,
		Window:    cfg.Lockout.Window,
	}, now)

	// -------- SECRETS --------
	ph, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MinPasswordBytes: cfg.Password.MinLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	// -------- SESSION TOKENS --------
	privateKey := cloneBytes(cfg.Session.PrivateKey)
	publicKey := cloneBytes(cfg.Session.PublicKey)
	if cfg.Session.SigningMethod == "ed25519" && len(privateKey) == 0 && len(publicKey) == 0 {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		privateKey, publicKey = priv, pub
		logger.Warn("no session signing key configured; generated an ephemeral ed25519 key")
	}
	jm, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.Session.TTL,
		SigningMethod: jwt.SigningMethod(cfg.Session.SigningMethod),
		PrivateKey:    privateKey,
		PublicKey:     publicKey,
		Issuer:        cfg.Session.Issuer,
		Audience:      cfg.Session.Audience,
		Leeway:        cfg.Session.Leeway,
		KeyID:         cfg.Session.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	// -------- DISPATCHERS --------
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.delivery = dispatch.NewQueue[DeliveryMessage](dispatch.Config{
		Workers:    cfg.Delivery.Workers,
		BufferSize: cfg.Delivery.BufferSize,
		DropIfFull: cfg.Delivery.DropIfFull,
	}, engine.runDelivery)

	engine.flows = engine.buildFlows()

	b.built = true

	return engine, nil
}
