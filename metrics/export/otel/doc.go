// Package otel binds authcore engine counters to OpenTelemetry observable
// instruments. One callback reads a metrics snapshot per collection cycle.
// The caller owns the MeterProvider; this package never mutates engine
// state.
package otel
