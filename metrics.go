package khata

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one client counter.
type MetricID uint16

const (
	// MetricRequest counts calls to Do.
	MetricRequest MetricID = iota
	// MetricRequestFailure counts Do calls that returned an error.
	MetricRequestFailure
	// MetricRefreshAttempt counts refresh calls sent to the backend.
	MetricRefreshAttempt
	// MetricRefreshSuccess counts refreshes that produced a new session.
	MetricRefreshSuccess
	// MetricRefreshFailure counts refreshes that cleared the session.
	MetricRefreshFailure
	// MetricRefreshCoalesced counts callers that shared another caller's refresh.
	MetricRefreshCoalesced
	// MetricRetry counts requests replayed after a refresh.
	MetricRetry
	MetricSessionSet
	MetricSessionCleared
	MetricLoginSuccess
	MetricLoginFailure
	MetricLogout
	MetricForbidden
	MetricNotFound
	MetricNetworkFailure
	MetricGuardPermitted
	MetricGuardRedirectLogin
	MetricGuardRedirectHome
	MetricGuardUnauthorized
	// MetricRequestLatency is the only histogram.
	MetricRequestLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricRequest:            "request",
	MetricRequestFailure:     "request_failure",
	MetricRefreshAttempt:     "refresh_attempt",
	MetricRefreshSuccess:     "refresh_success",
	MetricRefreshFailure:     "refresh_failure",
	MetricRefreshCoalesced:   "refresh_coalesced",
	MetricRetry:              "retry",
	MetricSessionSet:         "session_set",
	MetricSessionCleared:     "session_cleared",
	MetricLoginSuccess:       "login_success",
	MetricLoginFailure:       "login_failure",
	MetricLogout:             "logout",
	MetricForbidden:          "forbidden",
	MetricNotFound:           "not_found",
	MetricNetworkFailure:     "network_failure",
	MetricGuardPermitted:     "guard_permitted",
	MetricGuardRedirectLogin: "guard_redirect_login",
	MetricGuardRedirectHome:  "guard_redirect_home",
	MetricGuardUnauthorized:  "guard_unauthorized",
	MetricRequestLatency:     "request_latency",
}

// String returns the snake_case metric name used by the exporters.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// MetricIDs lists every counter in declaration order.
func MetricIDs() []MetricID {
	ids := make([]MetricID, 0, int(metricIDCount))
	for id := MetricID(0); id < metricIDCount; id++ {
		ids = append(ids, id)
	}
	return ids
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// HistogramBucketBounds are the inclusive upper bounds of the latency buckets; the last
// bucket is unbounded.
var HistogramBucketBounds = [histBucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

type metricHistogram struct {
	buckets [histBucketCount]uint64
	sum     uint64 // nanoseconds
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a set of lock-free counters. A nil or disabled Metrics ignores every call.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of the counters. Histograms hold per-bucket
// (non-cumulative) counts; HistogramSums the total observed duration.
type MetricsSnapshot struct {
	Counters      map[MetricID]uint64
	Histograms    map[MetricID][]uint64
	HistogramSums map[MetricID]time.Duration
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the latency histogram. Only MetricRequestLatency is recorded.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricRequestLatency {
		return
	}

	if d < 0 {
		d = 0
	}
	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
	atomic.AddUint64(&m.histograms[id].sum, uint64(d))
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:      map[MetricID]uint64{},
			Histograms:    map[MetricID][]uint64{},
			HistogramSums: map[MetricID]time.Duration{},
		}
	}

	s := MetricsSnapshot{
		Counters:      make(map[MetricID]uint64, int(metricIDCount)),
		Histograms:    make(map[MetricID][]uint64, 1),
		HistogramSums: make(map[MetricID]time.Duration, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricRequestLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricRequestLatency].buckets[i])
		}
		s.Histograms[MetricRequestLatency] = buckets
		s.HistogramSums[MetricRequestLatency] = time.Duration(atomic.LoadUint64(&m.histograms[MetricRequestLatency].sum))
	}

	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range HistogramBucketBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
