package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls queue buffering and concurrency.
type Config struct {
	Workers    int
	BufferSize int
	DropIfFull bool
}

// Handler processes one item. It runs on a worker goroutine with a
// background context; handlers that do I/O should apply their own timeout.
type Handler[T any] func(ctx context.Context, item T)

// Queue asynchronously forwards items to a handler.
type Queue[T any] struct {
	cfg       Config
	handle    Handler[T]
	ch        chan T
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func NewQueue[T any](cfg Config, handle Handler[T]) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if handle == nil {
		handle = func(context.Context, T) {}
	}

	q := &Queue[T]{
		cfg:    cfg,
		handle: handle,
		ch:     make(chan T, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	q.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go q.run()
	}

	return q
}

func (q *Queue[T]) run() {
	defer q.wg.Done()

	for {
		select {
		case item := <-q.ch:
			q.handle(context.Background(), item)
		case <-q.done:
			for {
				select {
				case item := <-q.ch:
					q.handle(context.Background(), item)
				default:
					return
				}
			}
		}
	}
}

// Submit enqueues item and reports whether it was accepted. A nil or closed
// queue rejects everything.
func (q *Queue[T]) Submit(ctx context.Context, item T) bool {
	if q == nil || q.closed.Load() {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if q.cfg.DropIfFull {
		select {
		case q.ch <- item:
			return true
		case <-q.done:
			return false
		default:
			q.dropped.Add(1)
			return false
		}
	}

	select {
	case q.ch <- item:
		return true
	case <-ctx.Done():
		return false
	case <-q.done:
		return false
	}
}

// Close stops intake, drains buffered items and waits for the workers.
func (q *Queue[T]) Close() {
	if q == nil {
		return
	}
	q.closeOnce.Do(func() {
		q.closed.Store(true)
		close(q.done)
		q.wg.Wait()
	})
}

func (q *Queue[T]) Dropped() uint64 {
	if q == nil {
		return 0
	}
	return q.dropped.Load()
}
