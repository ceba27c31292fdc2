package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/boikhata/khata"
	"github.com/boikhata/khata/metrics/export/internaldefs"
)

type fakeSource struct {
	snapshot khata.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() khata.MetricsSnapshot { return f.snapshot }
func (f fakeSource) NotificationsDropped() uint64           { return f.dropped }

func populated() fakeSource {
	counters := map[khata.MetricID]uint64{}
	for _, id := range khata.MetricIDs() {
		if id != khata.MetricRequestLatency {
			counters[id] = 0
		}
	}
	counters[khata.MetricLoginSuccess] = 7
	return fakeSource{
		snapshot: khata.MetricsSnapshot{
			Counters:      counters,
			Histograms:    map[khata.MetricID][]uint64{khata.MetricRequestLatency: {1, 2, 3, 4, 5, 6, 7, 8}},
			HistogramSums: map[khata.MetricID]time.Duration{khata.MetricRequestLatency: 2 * time.Second},
		},
		dropped: 2,
	}
}

func TestCollectorCounters(t *testing.T) {
	c := NewCollector(populated())

	want := `
# HELP boikhata_login_success_total Successful logins.
# TYPE boikhata_login_success_total counter
boikhata_login_success_total 7
# HELP boikhata_notifications_dropped_total Notifications dropped because the dispatcher queue was full.
# TYPE boikhata_notifications_dropped_total counter
boikhata_notifications_dropped_total 2
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(want),
		"boikhata_login_success_total", "boikhata_notifications_dropped_total"); err != nil {
		t.Fatal(err)
	}

	wantSeries := len(internaldefs.CounterDefs) + len(internaldefs.HistogramDefs) + 1
	if got := testutil.CollectAndCount(c); got != wantSeries {
		t.Fatalf("expected %d series, got %d", wantSeries, got)
	}
}

func TestCollectorHistogramIsCumulative(t *testing.T) {
	c := NewCollector(populated())

	want := `
# HELP boikhata_request_latency_seconds Request layer latency including refresh and retry.
# TYPE boikhata_request_latency_seconds histogram
boikhata_request_latency_seconds_bucket{le="0.005"} 1
boikhata_request_latency_seconds_bucket{le="0.01"} 3
boikhata_request_latency_seconds_bucket{le="0.025"} 6
boikhata_request_latency_seconds_bucket{le="0.05"} 10
boikhata_request_latency_seconds_bucket{le="0.1"} 15
boikhata_request_latency_seconds_bucket{le="0.25"} 21
boikhata_request_latency_seconds_bucket{le="0.5"} 28
boikhata_request_latency_seconds_bucket{le="+Inf"} 36
boikhata_request_latency_seconds_sum 2
boikhata_request_latency_seconds_count 36
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(want), "boikhata_request_latency_seconds"); err != nil {
		t.Fatal(err)
	}
}

func TestCollectorDisabledMetricsOnlyReportDrops(t *testing.T) {
	c := NewCollector(fakeSource{snapshot: khata.MetricsSnapshot{}})
	if got := testutil.CollectAndCount(c); got != 1 {
		t.Fatalf("expected only the drop counter, got %d series", got)
	}
}

func TestHandlerServesClientMetrics(t *testing.T) {
	cfg := khata.DefaultConfig()
	client, err := khata.New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	defer client.Close()
	client.Metrics().Inc(khata.MetricLogout)

	srv := httptest.NewServer(Handler(client))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), "boikhata_logout_total 1") {
		t.Fatalf("expected logout counter in scrape, got:\n%s", body)
	}
}
