// Package prometheus exposes client metrics through a prometheus.Collector.
//
// The collector reads a fresh snapshot on every scrape, so it can be registered once and
// left alone. Counter names are boikhata_<metric>_total; request latency is the
// boikhata_request_latency_seconds histogram. [Handler] serves a private registry for
// callers that do not run their own.
package prometheus
