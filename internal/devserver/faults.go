package devserver

import "sync/atomic"

// Faults forces failures on upcoming requests. Counters are consumed one per matching
// request; all methods are safe for concurrent use.
type Faults struct {
	unauthorized atomic.Int64
	forbidden    atomic.Int64
	failRefresh  atomic.Bool
	refreshCalls atomic.Int64
}

// Unauthorized makes the next n authenticated requests answer 401.
func (f *Faults) Unauthorized(n int) {
	f.unauthorized.Store(int64(n))
}

// Forbidden makes the next n authenticated requests answer 403.
func (f *Faults) Forbidden(n int) {
	f.forbidden.Store(int64(n))
}

// FailRefresh makes refresh-token answer 401 until cleared.
func (f *Faults) FailRefresh(fail bool) {
	f.failRefresh.Store(fail)
}

// RefreshCalls reports how many refresh-token requests were served.
func (f *Faults) RefreshCalls() int64 {
	return f.refreshCalls.Load()
}

func (f *Faults) take(c *atomic.Int64) bool {
	for {
		n := c.Load()
		if n <= 0 {
			return false
		}
		if c.CompareAndSwap(n, n-1) {
			return true
		}
	}
}
