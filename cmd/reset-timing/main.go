// Command reset-timing measures RequestPasswordReset latency for known and
// unknown identifiers against miniredis or a real Redis, to check that the
// response floor hides which branch ran.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sync/atomic"
	"time"

	goReset "github.com/MrEthical07/goReset"
	"github.com/MrEthical07/goReset/credentials"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type options struct {
	accounts    int
	concurrency int
	ops         int
	floor       time.Duration
	redisAddr   string
	prefix      string
}

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:          "reset-timing",
		Short:        "Compare reset request latency for known and unknown identifiers",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.accounts <= 0 || o.concurrency <= 0 || o.ops <= 0 || o.floor < 0 {
				return fmt.Errorf("accounts, concurrency and ops must be > 0; floor must be >= 0")
			}
			if o.redisAddr == "" {
				o.redisAddr = os.Getenv("REDIS_ADDR")
			}
			return run(cmd.Context(), o, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.IntVar(&o.accounts, "accounts", 200, "number of credentials to seed")
	f.IntVar(&o.concurrency, "concurrency", 32, "number of concurrent workers")
	f.IntVar(&o.ops, "ops", 2000, "requests per phase (known, unknown)")
	f.DurationVar(&o.floor, "floor", 400*time.Millisecond, "response floor; 0 disables padding")
	f.StringVar(&o.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	f.StringVar(&o.prefix, "prefix", "rpr-timing", "redis key prefix")
	return cmd
}

func run(ctx context.Context, o options, out io.Writer) error {
	client, closeRedis, err := connect(o.redisAddr, out)
	if err != nil {
		return err
	}
	defer closeRedis()

	cfg := goReset.DemoConfig()
	cfg.PasswordReset.ExposeFound = false
	cfg.PasswordReset.MinResponseTime = o.floor
	cfg.PasswordReset.MaxRequests = o.ops
	cfg.Registration.EnableIPThrottle = false
	cfg.Delivery.BufferSize = o.ops
	cfg.Storage.RedisPrefix = o.prefix

	engine, err := goReset.New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(credentials.NewMemoryStore()).
		WithDeliveryAdapter(goReset.DeliveryFunc(func(context.Context, goReset.DeliveryMessage) error { return nil })).
		Build()
	if err != nil {
		return fmt.Errorf("engine build failed: %w", err)
	}
	defer engine.Close()

	known := identifiers("user", o.accounts)
	seeded := time.Now()
	for _, id := range known {
		if _, err := engine.Register(ctx, goReset.RegisterRequest{Identifier: id, Secret: "timing-secret"}); err != nil {
			return fmt.Errorf("register %s: %w", id, err)
		}
	}
	fmt.Fprintf(out, "seeded %d credentials in %s\n", o.accounts, time.Since(seeded).Round(time.Millisecond))

	k := measure(ctx, engine, known, o.ops, o.concurrency)
	u := measure(ctx, engine, identifiers("ghost", o.accounts), o.ops, o.concurrency)

	fmt.Fprintln(out, "---- results ----")
	fmt.Fprintf(out, "known:   %s\n", k)
	fmt.Fprintf(out, "unknown: %s\n", u)
	fmt.Fprintf(out, "p50 gap=%s p99 gap=%s\n", gap(k.p50, u.p50), gap(k.p99, u.p99))
	return nil
}

func connect(addr string, out io.Writer) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Fprintf(out, "using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func identifiers(kind string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%d@timing.test", kind, i)
	}
	return out
}

type requester interface {
	RequestPasswordReset(ctx context.Context, identifier string) (goReset.ResetResponse, error)
}

// measure issues ops requests cycling over ids with at most concurrency in
// flight and summarizes their latency.
func measure(ctx context.Context, r requester, ids []string, ops, concurrency int) summary {
	samples := make([]time.Duration, ops)
	var failures atomic.Int64

	var g errgroup.Group
	g.SetLimit(concurrency)
	start := time.Now()
	for i := 0; i < ops; i++ {
		i := i
		g.Go(func() error {
			t0 := time.Now()
			if _, err := r.RequestPasswordReset(ctx, ids[i%len(ids)]); err != nil {
				failures.Add(1)
			}
			samples[i] = time.Since(t0)
			return nil
		})
	}
	_ = g.Wait()

	return summarize(time.Since(start), samples, failures.Load())
}

type summary struct {
	elapsed  time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
}

func summarize(elapsed time.Duration, samples []time.Duration, failures int64) summary {
	slices.Sort(samples)
	return summary{
		elapsed:  elapsed,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
	}
}

func (s summary) String() string {
	rate := 0.0
	if s.elapsed > 0 {
		rate = float64(s.ops) / s.elapsed.Seconds()
	}
	return fmt.Sprintf("ops=%d failures=%d elapsed=%s ops/sec=%.0f p50=%s p95=%s p99=%s",
		s.ops, s.failures, s.elapsed.Round(time.Millisecond), rate,
		s.p50.Round(time.Microsecond), s.p95.Round(time.Microsecond), s.p99.Round(time.Microsecond))
}

// percentile expects sorted samples.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	p = max(0, min(p, 100))
	return sorted[(len(sorted)-1)*p/100]
}

func gap(a, b time.Duration) time.Duration {
	if a < b {
		a, b = b, a
	}
	return (a - b).Round(time.Microsecond)
}
