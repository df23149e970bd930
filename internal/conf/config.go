// Package conf loads the resetd daemon configuration from a YAML file, an
// optional .env file and RESETD_* environment variables.
package conf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	goReset "github.com/MrEthical07/goReset"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "RESETD"

// Config is the daemon configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
	Reset    ResetConfig    `mapstructure:"reset"`
	Session  SessionConfig  `mapstructure:"session"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Audit    AuditConfig    `mapstructure:"audit"`
	// Demo starts from goReset.DemoConfig instead of DefaultConfig.
	Demo bool `mapstructure:"demo"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
	AccessLog       bool          `mapstructure:"access_log"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RedisConfig selects the Redis backends. An empty Addr keeps the vault and
// limiters in memory.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// DatabaseConfig selects the Postgres credential store. An empty DSN keeps
// credentials in memory.
type DatabaseConfig struct {
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type DeliveryConfig struct {
	// Adapter is one of "log", "smtp" or "webhook".
	Adapter    string        `mapstructure:"adapter"`
	RevealCode bool          `mapstructure:"reveal_code"`
	Workers    int           `mapstructure:"workers"`
	BufferSize int           `mapstructure:"buffer_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
	SMTP       SMTPConfig    `mapstructure:"smtp"`
	Webhook    WebhookConfig `mapstructure:"webhook"`
	Breaker    BreakerConfig `mapstructure:"breaker"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	Subject  string `mapstructure:"subject"`
	UseTLS   bool   `mapstructure:"use_tls"`
}

type WebhookConfig struct {
	URL     string        `mapstructure:"url"`
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type BreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

type ResetConfig struct {
	TTL              time.Duration `mapstructure:"ttl"`
	Window           time.Duration `mapstructure:"window"`
	MaxRequests      int           `mapstructure:"max_requests"`
	EnableIPThrottle bool          `mapstructure:"enable_ip_throttle"`
	MaxRequestsPerIP int           `mapstructure:"max_requests_per_ip"`
	MinResponseTime  time.Duration `mapstructure:"min_response_time"`
	ExposeFound      bool          `mapstructure:"expose_found"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
}

type SessionConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SigningMethod string        `mapstructure:"signing_method"`
	// Secret is the HS256 key.
	Secret string `mapstructure:"secret"`
	// PrivateKeyFile is a PEM encoded ed25519 key.
	PrivateKeyFile string `mapstructure:"private_key_file"`
	Issuer         string `mapstructure:"issuer"`
	Audience       string `mapstructure:"audience"`
}

type MetricsConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	Histograms bool `mapstructure:"histograms"`
}

type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
}

// Load reads configPath, or resetd.yaml from ./configs or the working
// directory when configPath is empty. A missing default file is not an
// error; every key has a default. Values from .env are exported before
// environment variables are read.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("resetd")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	base := goReset.DefaultConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("server.access_log", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", base.Storage.RedisPrefix)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("delivery.adapter", "log")
	v.SetDefault("delivery.reveal_code", false)
	v.SetDefault("delivery.workers", base.Delivery.Workers)
	v.SetDefault("delivery.buffer_size", base.Delivery.BufferSize)
	v.SetDefault("delivery.timeout", base.Delivery.Timeout)
	v.SetDefault("delivery.smtp.host", "")
	v.SetDefault("delivery.smtp.port", 587)
	v.SetDefault("delivery.smtp.username", "")
	v.SetDefault("delivery.smtp.password", "")
	v.SetDefault("delivery.smtp.from", "")
	v.SetDefault("delivery.smtp.subject", "")
	v.SetDefault("delivery.smtp.use_tls", false)
	v.SetDefault("delivery.webhook.url", "")
	v.SetDefault("delivery.webhook.secret", "")
	v.SetDefault("delivery.webhook.timeout", 5*time.Second)
	v.SetDefault("delivery.breaker.enabled", true)
	v.SetDefault("delivery.breaker.max_requests", 3)
	v.SetDefault("delivery.breaker.interval", 10*time.Second)
	v.SetDefault("delivery.breaker.timeout", 30*time.Second)
	v.SetDefault("delivery.breaker.min_requests", 5)
	v.SetDefault("delivery.breaker.failure_ratio", 0.6)

	v.SetDefault("reset.ttl", base.PasswordReset.ResetTTL)
	v.SetDefault("reset.window", base.PasswordReset.Window)
	v.SetDefault("reset.max_requests", base.PasswordReset.MaxRequests)
	v.SetDefault("reset.enable_ip_throttle", base.PasswordReset.EnableIPThrottle)
	v.SetDefault("reset.max_requests_per_ip", base.PasswordReset.MaxRequestsPerIP)
	v.SetDefault("reset.min_response_time", base.PasswordReset.MinResponseTime)
	v.SetDefault("reset.expose_found", base.PasswordReset.ExposeFound)
	v.SetDefault("reset.sweep_interval", 5*time.Minute)

	v.SetDefault("session.ttl", base.Session.TTL)
	v.SetDefault("session.signing_method", base.Session.SigningMethod)
	v.SetDefault("session.secret", "")
	v.SetDefault("session.private_key_file", "")
	v.SetDefault("session.issuer", "resetd")
	v.SetDefault("session.audience", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.histograms", true)

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.buffer_size", base.Audit.BufferSize)

	v.SetDefault("demo", false)
}

// EngineConfig maps the daemon configuration onto a goReset.Config. Keys
// not exposed by the daemon keep their library defaults.
func (c *Config) EngineConfig() (goReset.Config, error) {
	cfg := goReset.DefaultConfig()
	if c.Demo {
		cfg = goReset.DemoConfig()
	}

	cfg.PasswordReset.ResetTTL = c.Reset.TTL
	cfg.PasswordReset.Window = c.Reset.Window
	cfg.PasswordReset.MaxRequests = c.Reset.MaxRequests
	cfg.PasswordReset.EnableIPThrottle = c.Reset.EnableIPThrottle
	cfg.PasswordReset.MaxRequestsPerIP = c.Reset.MaxRequestsPerIP
	cfg.PasswordReset.SweepInterval = c.Reset.SweepInterval
	if !c.Demo {
		cfg.PasswordReset.MinResponseTime = c.Reset.MinResponseTime
		cfg.PasswordReset.ExposeFound = c.Reset.ExposeFound
	}

	cfg.Delivery.Workers = c.Delivery.Workers
	cfg.Delivery.BufferSize = c.Delivery.BufferSize
	cfg.Delivery.Timeout = c.Delivery.Timeout

	cfg.Session.TTL = c.Session.TTL
	cfg.Session.SigningMethod = c.Session.SigningMethod
	cfg.Session.Issuer = c.Session.Issuer
	cfg.Session.Audience = c.Session.Audience
	switch strings.ToLower(c.Session.SigningMethod) {
	case "hs256":
		cfg.Session.PrivateKey = []byte(c.Session.Secret)
	default:
		if c.Session.PrivateKeyFile != "" {
			key, err := os.ReadFile(c.Session.PrivateKeyFile)
			if err != nil {
				return goReset.Config{}, fmt.Errorf("read session key: %w", err)
			}
			cfg.Session.PrivateKey = key
		}
	}

	cfg.Storage.RedisPrefix = c.Redis.Prefix
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Histograms
	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Audit.BufferSize = c.Audit.BufferSize

	if err := cfg.Validate(); err != nil {
		return goReset.Config{}, err
	}
	return cfg, nil
}
