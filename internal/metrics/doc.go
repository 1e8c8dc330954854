// Package metrics implements the in-process metrics system used by the
// engine: fixed-slot atomic counters keyed by MetricID, with lock-free
// increments and copy-on-read snapshots. Exporters under metrics/export
// render snapshots for Prometheus and OpenTelemetry.
package metrics
