package delivery

import (
	"context"
	"time"

	goReset "github.com/MrEthical07/goReset"
	"github.com/sony/gobreaker"
)

// BreakerConfig controls the circuit breaker. The circuit opens once at
// least MinRequests calls were made in the current Interval and the
// failure ratio reaches FailureRatio. It half-opens after Timeout.
type BreakerConfig struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64

	OnStateChange func(name string, from, to gobreaker.State)
}

// Breaker wraps a DeliveryAdapter in a gobreaker circuit breaker. While the
// circuit is open Deliver fails immediately with gobreaker.ErrOpenState.
type Breaker struct {
	next goReset.DeliveryAdapter
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(next goReset.DeliveryAdapter, cfg BreakerConfig) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "delivery"
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 3
	}
	if cfg.Interval == 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 5
	}
	if cfg.FailureRatio == 0 {
		cfg.FailureRatio = 0.6
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureRatio
		},
		OnStateChange: cfg.OnStateChange,
	}

	return &Breaker{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *Breaker) Deliver(ctx context.Context, msg goReset.DeliveryMessage) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Deliver(ctx, msg)
	})
	return err
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
