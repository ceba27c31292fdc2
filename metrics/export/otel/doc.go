// Package otel publishes client metrics as OpenTelemetry asynchronous instruments.
//
// Each counter becomes an Int64ObservableCounter. The latency histogram is published as
// one cumulative Int64ObservableGauge per bucket plus _count and _sum instruments, all
// fed by a single callback that reads one snapshot per collection. The caller owns the
// MeterProvider.
package otel
