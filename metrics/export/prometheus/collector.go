package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/boikhata/khata"
	"github.com/boikhata/khata/metrics/export/internaldefs"
)

// Source is what the collector reads. *khata.Client implements it.
type Source interface {
	MetricsSnapshot() khata.MetricsSnapshot
	NotificationsDropped() uint64
}

type idDesc struct {
	id   khata.MetricID
	desc *prometheus.Desc
}

// Collector is a prometheus.Collector over one Source.
type Collector struct {
	source     Source
	counters   []idDesc
	histograms []idDesc
	dropped    *prometheus.Desc
	bounds     []float64
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(source Source) *Collector {
	c := &Collector{
		source:  source,
		dropped: prometheus.NewDesc(internaldefs.NotificationsDropped.Name, internaldefs.NotificationsDropped.Help, nil, nil),
		bounds:  internaldefs.UpperBounds(),
	}
	for _, d := range internaldefs.CounterDefs {
		c.counters = append(c.counters, idDesc{id: d.ID, desc: prometheus.NewDesc(d.Name, d.Help, nil, nil)})
	}
	for _, d := range internaldefs.HistogramDefs {
		c.histograms = append(c.histograms, idDesc{id: d.ID, desc: prometheus.NewDesc(d.Name, d.Help, nil, nil)})
	}
	return c
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.counters {
		ch <- d.desc
	}
	for _, d := range c.histograms {
		ch <- d.desc
	}
	ch <- c.dropped
}

// Collect emits every counter and histogram present in the snapshot. A disabled Metrics
// yields an empty snapshot, leaving only the drop counter.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.source == nil {
		return
	}
	snap := c.source.MetricsSnapshot()

	for _, d := range c.counters {
		v, ok := snap.Counters[d.id]
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(d.desc, prometheus.CounterValue, float64(v))
	}

	for _, d := range c.histograms {
		raw, ok := snap.Histograms[d.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.Cumulative(raw)
		buckets := make(map[float64]uint64, len(c.bounds))
		for i, le := range c.bounds {
			buckets[le] = cumulative[i]
		}
		count := cumulative[len(cumulative)-1]
		ch <- prometheus.MustNewConstHistogram(d.desc, count, snap.HistogramSums[d.id].Seconds(), buckets)
	}

	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(c.source.NotificationsDropped()))
}

// Handler serves source on a registry of its own.
func Handler(source Source) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(source))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
