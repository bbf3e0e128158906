// Package metrics holds the Prometheus collectors for queries, renders and
// dataset loads.
package metrics

import (
	"net/http"
	"time"

	"github.com/chrissnell/echomap/internal/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "echomap"

// Metrics owns a private registry so tests and multiple servers do not
// collide on the default one.
type Metrics struct {
	registry *prometheus.Registry

	queries        *prometheus.CounterVec
	renders        *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	loads          *prometheus.CounterVec
	loadDuration   prometheus.Histogram
	loaded         prometheus.Gauge
}

// New creates and registers every collector, plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Query API requests by endpoint and outcome kind.",
		}, []string{"endpoint", "kind"}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Render requests that reached a worker, by format and result.",
		}, []string{"format", "result"}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time spent producing an artifact.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"format"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_loads_total",
			Help:      "Dataset load attempts by result.",
		}, []string{"result"}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dataset_load_duration_seconds",
			Help:      "Time spent reading the dataset file.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		loaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_loaded",
			Help:      "1 while the dataset is held in memory.",
		}),
	}
	m.registry.MustRegister(
		m.queries, m.renders, m.renderDuration, m.loads, m.loadDuration, m.loaded,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveQuery counts one API request. kind is "ok" for a success, otherwise
// the query error kind.
func (m *Metrics) ObserveQuery(endpoint, kind string) {
	m.queries.WithLabelValues(endpoint, kind).Inc()
}

// ObserveRender matches render.Observer.
func (m *Metrics) ObserveRender(format render.Format, elapsed time.Duration, reused bool, err error) {
	result := "rendered"
	switch {
	case err != nil:
		result = "error"
	case reused:
		result = "reused"
	}
	m.renders.WithLabelValues(string(format), result).Inc()
	if err == nil && !reused {
		m.renderDuration.WithLabelValues(string(format)).Observe(elapsed.Seconds())
	}
}

// ObserveLoad matches dataset.LoadObserver.
func (m *Metrics) ObserveLoad(elapsed time.Duration, err error) {
	m.loadDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.loads.WithLabelValues("error").Inc()
		return
	}
	m.loads.WithLabelValues("ok").Inc()
	m.loaded.Set(1)
}

// DatasetReleased marks the dataset as dropped from memory.
func (m *Metrics) DatasetReleased() {
	m.loaded.Set(0)
}
