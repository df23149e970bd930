package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryWindow is an in-process [Window]. Logs are kept per key and pruned
// on every access.
type MemoryWindow struct {
	mu   sync.Mutex
	logs map[string][]time.Time
}

func NewMemoryWindow() *MemoryWindow {
	return &MemoryWindow{logs: make(map[string][]time.Time)}
}

func (w *MemoryWindow) Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if limit <= 0 {
		return false, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	log := w.pruneLocked(key, window, now)
	if len(log) >= limit {
		return false, nil
	}
	w.logs[key] = append(log, now)
	return true, nil
}

func (w *MemoryWindow) Count(ctx context.Context, key string, window time.Duration, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pruneLocked(key, window, now)), nil
}

func (w *MemoryWindow) Reset(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	delete(w.logs, key)
	w.mu.Unlock()
	return nil
}

func (w *MemoryWindow) pruneLocked(key string, window time.Duration, now time.Time) []time.Time {
	log := w.logs[key]
	floor := now.Add(-window)

	keep := 0
	for keep < len(log) && !log[keep].After(floor) {
		keep++
	}
	if keep > 0 {
		log = append(log[:0], log[keep:]...)
	}
	if len(log) == 0 {
		delete(w.logs, key)
		return nil
	}
	w.logs[key] = log
	return log
}
