package audit

import (
	"context"

	"github.com/MrEthical07/goReset/internal/dispatch"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher asynchronously forwards audit events to a sink on a single
// worker, so a sink sees events in submission order.
type Dispatcher struct {
	queue *dispatch.Queue[Event]
}

// NewDispatcher returns nil when auditing is disabled. All methods accept a
// nil receiver.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	return &Dispatcher{
		queue: dispatch.NewQueue[Event](dispatch.Config{
			Workers:    1,
			BufferSize: cfg.BufferSize,
			DropIfFull: cfg.DropIfFull,
		}, sink.Emit),
	}
}

func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	d.queue.Submit(ctx, event)
}

func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.queue.Close()
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.queue.Dropped()
}
