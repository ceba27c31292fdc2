package internaldefs

import (
	"strconv"
	"strings"

	"github.com/boikhata/khata"
)

// Namespace prefixes every exported metric name.
const Namespace = "boikhata"

// Def names one exported series.
type Def struct {
	ID   khata.MetricID
	Name string
	Help string
}

var CounterDefs = []Def{
	counter(khata.MetricRequest, "Requests sent through the request layer."),
	counter(khata.MetricRequestFailure, "Requests that returned an error."),
	counter(khata.MetricRefreshAttempt, "Refresh calls sent to the backend."),
	counter(khata.MetricRefreshSuccess, "Refreshes that produced a new session."),
	counter(khata.MetricRefreshFailure, "Refreshes that ended the session."),
	counter(khata.MetricRefreshCoalesced, "Callers that shared an in-flight refresh."),
	counter(khata.MetricRetry, "Requests replayed after a refresh."),
	counter(khata.MetricSessionSet, "Sessions stored."),
	counter(khata.MetricSessionCleared, "Sessions cleared."),
	counter(khata.MetricLoginSuccess, "Successful logins."),
	counter(khata.MetricLoginFailure, "Failed logins."),
	counter(khata.MetricLogout, "Logouts."),
	counter(khata.MetricForbidden, "Responses with status 403."),
	counter(khata.MetricNotFound, "Responses with status 404."),
	counter(khata.MetricNetworkFailure, "Requests that failed without a response."),
	counter(khata.MetricGuardPermitted, "Guard checks that permitted navigation."),
	counter(khata.MetricGuardRedirectLogin, "Guard checks that redirected to login."),
	counter(khata.MetricGuardRedirectHome, "Guard checks that redirected to the role home."),
	counter(khata.MetricGuardUnauthorized, "Role checks failed by a logged-in user."),
}

var HistogramDefs = []Def{
	{
		ID:   khata.MetricRequestLatency,
		Name: Namespace + "_request_latency_seconds",
		Help: "Request layer latency including refresh and retry.",
	},
}

// NotificationsDropped names the dispatcher drop counter.
var NotificationsDropped = Def{
	Name: Namespace + "_notifications_dropped_total",
	Help: "Notifications dropped because the dispatcher queue was full.",
}

func counter(id khata.MetricID, help string) Def {
	return Def{ID: id, Name: Namespace + "_" + id.String() + "_total", Help: help}
}

// BucketCount is the number of histogram buckets including +Inf.
const BucketCount = len(khata.HistogramBucketBounds) + 1

// UpperBounds returns the finite bucket bounds in seconds.
func UpperBounds() []float64 {
	out := make([]float64, 0, len(khata.HistogramBucketBounds))
	for _, b := range khata.HistogramBucketBounds {
		out = append(out, b.Seconds())
	}
	return out
}

// BoundSuffixes returns a name-safe label per bucket, "inf" last.
func BoundSuffixes() []string {
	out := make([]string, 0, BucketCount)
	for _, b := range UpperBounds() {
		out = append(out, strings.ReplaceAll(strconv.FormatFloat(b, 'f', -1, 64), ".", "_"))
	}
	return append(out, "inf")
}

// Cumulative converts per-bucket counts into cumulative counts, padding or truncating
// raw to BucketCount.
func Cumulative(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < BucketCount; i++ {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
