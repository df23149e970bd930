package rate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func eachWindow(t *testing.T, fn func(t *testing.T, w Window)) {
	t.Run("redis", func(t *testing.T) {
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("miniredis.Run failed: %v", err)
		}
		defer mr.Close()
		fn(t, NewRedisWindow(redis.NewClient(&redis.Options{Addr: mr.Addr()})))
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryWindow())
	})
}

func TestWindowAllowsUpToLimit(t *testing.T) {
	eachWindow(t, func(t *testing.T, w Window) {
		ctx := context.Background()
		now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

		for i := 0; i < 5; i++ {
			ok, err := w.Allow(ctx, "k", 5, time.Hour, now.Add(time.Duration(i)*time.Second))
			if err != nil {
				t.Fatalf("Allow %d failed: %v", i, err)
			}
			if !ok {
				t.Fatalf("expected request %d to be allowed", i+1)
			}
		}

		ok, err := w.Allow(ctx, "k", 5, time.Hour, now.Add(10*time.Second))
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if ok {
			t.Fatal("expected sixth request to be denied")
		}

		n, err := w.Count(ctx, "k", time.Hour, now.Add(10*time.Second))
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if n != 5 {
			t.Fatalf("expected denied request not to be recorded, count=%d", n)
		}
	})
}

func TestWindowRollsContinuously(t *testing.T) {
	eachWindow(t, func(t *testing.T, w Window) {
		ctx := context.Background()
		start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

		// One event at t0, four at t0+30m.
		if ok, _ := w.Allow(ctx, "k", 5, time.Hour, start); !ok {
			t.Fatal("expected first request allowed")
		}
		for i := 0; i < 4; i++ {
			if ok, _ := w.Allow(ctx, "k", 5, time.Hour, start.Add(30*time.Minute)); !ok {
				t.Fatalf("expected request %d allowed", i+2)
			}
		}

		if ok, _ := w.Allow(ctx, "k", 5, time.Hour, start.Add(59*time.Minute)); ok {
			t.Fatal("expected denial while all five events are inside the window")
		}

		// At t0+60m the first event leaves the window, freeing exactly one slot.
		if ok, _ := w.Allow(ctx, "k", 5, time.Hour, start.Add(60*time.Minute)); !ok {
			t.Fatal("expected one slot once the oldest event aged out")
		}
		if ok, _ := w.Allow(ctx, "k", 5, time.Hour, start.Add(60*time.Minute+time.Second)); ok {
			t.Fatal("expected denial until the t0+30m events age out")
		}
		if ok, _ := w.Allow(ctx, "k", 5, time.Hour, start.Add(91*time.Minute)); !ok {
			t.Fatal("expected allowance after the t0+30m events aged out")
		}
	})
}

func TestWindowKeysAreIndependent(t *testing.T) {
	eachWindow(t, func(t *testing.T, w Window) {
		ctx := context.Background()
		now := time.Now()
		if ok, _ := w.Allow(ctx, "a", 1, time.Hour, now); !ok {
			t.Fatal("expected a allowed")
		}
		if ok, _ := w.Allow(ctx, "b", 1, time.Hour, now); !ok {
			t.Fatal("expected b allowed independently of a")
		}
	})
}

func TestWindowReset(t *testing.T) {
	eachWindow(t, func(t *testing.T, w Window) {
		ctx := context.Background()
		now := time.Now()
		_, _ = w.Allow(ctx, "k", 1, time.Hour, now)
		if err := w.Reset(ctx, "k"); err != nil {
			t.Fatalf("Reset failed: %v", err)
		}
		if ok, _ := w.Allow(ctx, "k", 1, time.Hour, now); !ok {
			t.Fatal("expected allowance after reset")
		}
	})
}

func TestWindowConcurrentAllowNeverExceedsLimit(t *testing.T) {
	eachWindow(t, func(t *testing.T, w Window) {
		ctx := context.Background()
		now := time.Now()

		var (
			wg       sync.WaitGroup
			accepted atomic.Int32
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := w.Allow(ctx, "burst", 5, time.Hour, now)
				if err != nil && !errors.Is(err, ErrContention) {
					t.Errorf("Allow failed: %v", err)
					return
				}
				if ok {
					accepted.Add(1)
				}
			}()
		}
		wg.Wait()

		if accepted.Load() > 5 {
			t.Fatalf("expected at most 5 accepted events, got %d", accepted.Load())
		}
	})
}

func TestRedisWindowUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	w := NewRedisWindow(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	mr.Close()

	if _, err := w.Allow(context.Background(), "k", 5, time.Hour, time.Now()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
