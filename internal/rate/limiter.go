package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Window is a sliding-window log. Each accepted event is recorded with its
// timestamp; events older than the window are pruned lazily on access.
type Window interface {
	// Allow prunes the log for key, then records now and returns true if
	// fewer than limit events remain inside the window. Denied events are
	// not recorded.
	Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (bool, error)
	// Count returns the number of events inside the window ending at now.
	Count(ctx context.Context, key string, window time.Duration, now time.Time) (int, error)
	// Reset drops the log for key.
	Reset(ctx context.Context, key string) error
}

// RedisWindow stores each log as a sorted set scored by unix microseconds.
type RedisWindow struct {
	redis redis.UniversalClient
}

// NewRedisWindow creates a [Window] backed by the given Redis client.
func NewRedisWindow(redisClient redis.UniversalClient) *RedisWindow {
	return &RedisWindow{redis: redisClient}
}

// Allow runs the prune, count and record steps under WATCH so concurrent
// callers never admit more than limit events.
func (w *RedisWindow) Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (bool, error) {
	if limit <= 0 {
		return false, nil
	}

	const maxRetries = 8
	floor := windowFloor(window, now)

	for i := 0; i < maxRetries; i++ {
		var allowed bool

		err := w.redis.Watch(ctx, func(tx *redis.Tx) error {
			inWindow, err := tx.ZCount(ctx, key, strconv.FormatInt(floor+1, 10), "+inf").Result()
			if err != nil {
				return err
			}
			allowed = inWindow < int64(limit)

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(floor, 10))
				if allowed {
					pipe.ZAdd(ctx, key, redis.Z{
						Score:  float64(now.UnixMicro()),
						Member: strconv.FormatInt(now.UnixMicro(), 10) + ":" + uuid.NewString(),
					})
					pipe.PExpire(ctx, key, window)
				}
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return allowed, nil
	}

	return false, ErrContention
}

func (w *RedisWindow) Count(ctx context.Context, key string, window time.Duration, now time.Time) (int, error) {
	floor := windowFloor(window, now)
	n, err := w.redis.ZCount(ctx, key, strconv.FormatInt(floor+1, 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(n), nil
}

func (w *RedisWindow) Reset(ctx context.Context, key string) error {
	if err := w.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// windowFloor is the newest timestamp, in microseconds, that has already
// left the window ending at now.
func windowFloor(window time.Duration, now time.Time) int64 {
	return now.Add(-window).UnixMicro()
}
