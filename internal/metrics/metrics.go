// Package metrics exposes Prometheus instruments for the data-access layer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors registered on one registry.
type Metrics struct {
	Registry  *prometheus.Registry
	Reads     *prometheus.CounterVec
	Writes    *prometheus.CounterVec
	Fallbacks *prometheus.CounterVec
	Offline   prometheus.Gauge
	Refreshes *prometheus.CounterVec
}

// New registers all collectors on a fresh registry, plus the Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ruraldash",
			Name:      "reads_total",
			Help:      "Collection reads by resource and serving source.",
		}, []string{"resource", "source"}),
		Writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ruraldash",
			Name:      "writes_total",
			Help:      "Record writes by resource and serving source.",
		}, []string{"resource", "source"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ruraldash",
			Name:      "fallbacks_total",
			Help:      "Network operations that degraded to the mirror.",
		}, []string{"resource", "op"}),
		Offline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ruraldash",
			Name:      "offline",
			Help:      "1 once the process has switched to offline mode.",
		}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ruraldash",
			Name:      "refreshes_total",
			Help:      "Dashboard refreshes by outcome (live, partial).",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.Reads, m.Writes, m.Fallbacks, m.Offline, m.Refreshes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
