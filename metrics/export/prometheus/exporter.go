package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hexfold/authcore"
	"github.com/hexfold/authcore/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

// Collector implements prometheus.Collector over an engine's counters.
type Collector struct {
	source       metricsSource
	descs        map[authcore.MetricID]*prometheus.Desc
	auditDropped *prometheus.Desc
}

// NewCollector creates a collector reading from the given engine.
func NewCollector(engine *authcore.Engine) *Collector {
	return NewCollectorFromSource(engine)
}

// NewCollectorFromSource creates a collector over a custom source. Intended
// for tests and wrappers.
func NewCollectorFromSource(source metricsSource) *Collector {
	descs := make(map[authcore.MetricID]*prometheus.Desc, len(internaldefs.CounterDefs))
	for _, def := range internaldefs.CounterDefs {
		descs[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	return &Collector{
		source:       source,
		descs:        descs,
		auditDropped: prometheus.NewDesc(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, def := range internaldefs.CounterDefs {
		ch <- c.descs[def.ID]
	}
	ch <- c.auditDropped
}

// Collect implements prometheus.Collector. Each scrape reads a fresh
// snapshot.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.source == nil {
		return
	}

	snapshot := c.source.MetricsSnapshot()
	for _, def := range internaldefs.CounterDefs {
		ch <- prometheus.MustNewConstMetric(c.descs[def.ID], prometheus.CounterValue, float64(snapshot.Counters[def.ID]))
	}
	ch <- prometheus.MustNewConstMetric(c.auditDropped, prometheus.CounterValue, float64(c.source.AuditDropped()))
}

// Handler returns an http.Handler serving the collector from a private
// registry, for hosts that do not run their own.
func (c *Collector) Handler() http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(c)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
