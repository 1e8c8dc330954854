// Package prometheus exposes authcore engine counters as a Prometheus
// collector. The collector reads a fresh snapshot on every scrape; it never
// registers itself in the global registry and never mutates engine state.
package prometheus
