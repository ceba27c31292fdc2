package notify

import (
	"context"
	"sync"
	"sync/atomic"
)

// Sink shows a notification to the user, e.g. by logging it or writing it to a terminal.
type Sink[N any] interface {
	Emit(ctx context.Context, n N)
}

// Config controls how notifications are buffered on their way to the sink.
type Config struct {
	Enabled bool
	// BufferSize is the number of notifications queued ahead of a slow sink; at least 1.
	BufferSize int
	// DropIfFull discards a notification when the queue is full instead of waiting.
	DropIfFull bool
}

// Dispatcher hands notifications to a sink on its own goroutine so a request never waits
// on the user interface.
type Dispatcher[N any] struct {
	cfg       Config
	sink      Sink[N]
	queue     chan N
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher returns nil when notifications are disabled or sink is nil. A nil
// dispatcher accepts Emit and Close calls and does nothing.
func NewDispatcher[N any](cfg Config, sink Sink[N]) *Dispatcher[N] {
	if !cfg.Enabled || sink == nil {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}

	d := &Dispatcher[N]{
		cfg:   cfg,
		sink:  sink,
		queue: make(chan N, cfg.BufferSize),
		done:  make(chan struct{}),
	}

	d.wg.Add(1)
	go d.deliver()

	return d
}

func (d *Dispatcher[N]) deliver() {
	defer d.wg.Done()

	for {
		select {
		case n := <-d.queue:
			d.sink.Emit(context.Background(), n)
		case <-d.done:
			d.drain()
			return
		}
	}
}

// drain shows whatever was queued before Close.
func (d *Dispatcher[N]) drain() {
	for {
		select {
		case n := <-d.queue:
			d.sink.Emit(context.Background(), n)
		default:
			return
		}
	}
}

// Emit queues n. With DropIfFull a full queue drops n at once; otherwise Emit waits for
// room until ctx is done, counting n as dropped if it gives up. Notifications emitted
// after Close are ignored.
func (d *Dispatcher[N]) Emit(ctx context.Context, n N) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- n:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- n:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.done:
	}
}

// Close stops accepting notifications and waits until the queued ones reach the sink.
func (d *Dispatcher[N]) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped is the number of notifications that never reached the sink.
func (d *Dispatcher[N]) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
