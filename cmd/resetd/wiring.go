package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	goReset "github.com/MrEthical07/goReset"
	"github.com/MrEthical07/goReset/credentials"
	"github.com/MrEthical07/goReset/delivery"
	"github.com/MrEthical07/goReset/internal/conf"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// components holds everything a command builds from the config. close
// releases them in reverse order of creation.
type components struct {
	engine *goReset.Engine
	store  goReset.CredentialStore
	redis  redis.UniversalClient
	db     *sql.DB
}

func (c *components) close() {
	if c.engine != nil {
		c.engine.Close()
	}
	if c.db != nil {
		_ = c.db.Close()
	}
	if c.redis != nil {
		_ = c.redis.Close()
	}
}

func openRedis(ctx context.Context, rc conf.RedisConfig) (redis.UniversalClient, error) {
	if rc.Addr == "" {
		return nil, nil
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{rc.Addr},
		Password: rc.Password,
		DB:       rc.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func openCredentialStore(ctx context.Context, dc conf.DatabaseConfig, log *zap.Logger) (goReset.CredentialStore, *sql.DB, error) {
	if dc.DSN == "" {
		log.Warn("credentials are kept in memory and lost on restart")
		return credentials.NewMemoryStore(), nil, nil
	}

	db, err := credentials.OpenPostgres(ctx, dc.DSN)
	if err != nil {
		return nil, nil, err
	}
	if dc.AutoMigrate {
		if err := credentials.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}
	return credentials.NewPostgresStore(db), db, nil
}

func buildDeliveryAdapter(dc conf.DeliveryConfig, log *zap.Logger) (goReset.DeliveryAdapter, error) {
	var adapter goReset.DeliveryAdapter

	switch dc.Adapter {
	case "", "log":
		if dc.RevealCode {
			log.Warn("log delivery reveals reset codes; use only for local demos")
		}
		return delivery.NewLogAdapter(log, delivery.LogAdapterConfig{RevealCode: dc.RevealCode}), nil
	case "smtp":
		a, err := delivery.NewSMTPAdapter(delivery.SMTPConfig{
			Host:     dc.SMTP.Host,
			Port:     dc.SMTP.Port,
			Username: dc.SMTP.Username,
			Password: dc.SMTP.Password,
			From:     dc.SMTP.From,
			Subject:  dc.SMTP.Subject,
			UseTLS:   dc.SMTP.UseTLS,
		})
		if err != nil {
			return nil, err
		}
		adapter = a
	case "webhook":
		a, err := delivery.NewWebhookAdapter(delivery.WebhookConfig{
			URL:    dc.Webhook.URL,
			Secret: []byte(dc.Webhook.Secret),
			Client: &http.Client{Timeout: dc.Webhook.Timeout},
		})
		if err != nil {
			return nil, err
		}
		adapter = a
	default:
		return nil, fmt.Errorf("unknown delivery adapter %q", dc.Adapter)
	}

	if !dc.Breaker.Enabled {
		return adapter, nil
	}
	return delivery.NewBreaker(adapter, delivery.BreakerConfig{
		Name:         "delivery-" + dc.Adapter,
		MaxRequests:  dc.Breaker.MaxRequests,
		Interval:     dc.Breaker.Interval,
		Timeout:      dc.Breaker.Timeout,
		MinRequests:  dc.Breaker.MinRequests,
		FailureRatio: dc.Breaker.FailureRatio,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("delivery circuit state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}), nil
}

// buildComponents opens the configured backends and builds the engine.
func buildComponents(ctx context.Context, c *conf.Config, log *zap.Logger) (*components, error) {
	engineCfg, err := c.EngineConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	out := &components{}
	ok := false
	defer func() {
		if !ok {
			out.close()
		}
	}()

	out.redis, err = openRedis(ctx, c.Redis)
	if err != nil {
		return nil, err
	}
	out.store, out.db, err = openCredentialStore(ctx, c.Database, log)
	if err != nil {
		return nil, err
	}
	adapter, err := buildDeliveryAdapter(c.Delivery, log)
	if err != nil {
		return nil, err
	}

	b := goReset.New().
		WithConfig(engineCfg).
		WithCredentialStore(out.store).
		WithDeliveryAdapter(adapter).
		WithLogger(log)
	if out.redis != nil {
		b = b.WithRedis(out.redis)
	}
	if engineCfg.Audit.Enabled {
		b = b.WithAuditSink(goReset.NewZapSink(log.Named("audit")))
	}

	out.engine, err = b.Build()
	if err != nil {
		return nil, err
	}
	for _, w := range engineCfg.Lint() {
		log.Warn("config warning", zap.String("code", w.Code), zap.String("message", w.Message))
	}

	ok = true
	return out, nil
}
