package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultWarnAfter is how long a rehydration wait may last before it is logged.
const DefaultWarnAfter = 5 * time.Second

// Gate is a one-shot barrier released when the persisted session has been loaded.
type Gate struct {
	done      chan struct{}
	once      sync.Once
	warnAfter time.Duration
	log       *zerolog.Logger
}

func newGate(warnAfter time.Duration, log *zerolog.Logger) *Gate {
	return &Gate{
		done:      make(chan struct{}),
		warnAfter: warnAfter,
		log:       log,
	}
}

// open releases every waiter. It reports whether this call flipped the marker.
func (g *Gate) open() bool {
	flipped := false
	g.once.Do(func() {
		close(g.done)
		flipped = true
	})
	return flipped
}

// Opened reports whether rehydration has finished.
func (g *Gate) Opened() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

// Done is closed once rehydration has finished.
func (g *Gate) Done() <-chan struct{} {
	return g.done
}

// Wait blocks until rehydration has finished or ctx ends. It returns immediately when the
// marker is already set. A wait longer than the warn threshold is logged once; the wait
// itself never times out.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return nil
	default:
	}

	var warn <-chan time.Time
	if g.warnAfter > 0 {
		timer := time.NewTimer(g.warnAfter)
		defer timer.Stop()
		warn = timer.C
	}

	start := time.Now()
	for {
		select {
		case <-g.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-warn:
			warn = nil
			g.log.Warn().
				Dur("waited", time.Since(start)).
				Msg("session rehydration is taking unusually long; check the storage backend")
		}
	}
}
