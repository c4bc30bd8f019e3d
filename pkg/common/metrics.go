package common

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds common Prometheus metrics for the HTTP side of a component.
type Metrics struct {
	RequestsTotal  *prometheus.CounterVec
	RequestLatency prometheus.Histogram
	ErrorsTotal    prometheus.Counter
	ComponentReady prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with the given component name.
func NewMetrics(component string, reg prometheus.Registerer) *Metrics {
	labels := prometheus.Labels{"component": component}
	f := promauto.With(reg)

	return &Metrics{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "memoryhog_http_requests_total",
			Help:        "Total number of requests processed",
			ConstLabels: labels,
		}, []string{"code"}),
		RequestLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:        "memoryhog_http_request_latency_seconds",
			Help:        "Request latency in seconds",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		ErrorsTotal: f.NewCounter(prometheus.CounterOpts{
			Name:        "memoryhog_http_errors_total",
			Help:        "Total number of errors",
			ConstLabels: labels,
		}),
		ComponentReady: f.NewGauge(prometheus.GaugeOpts{
			Name:        "memoryhog_component_ready",
			Help:        "Whether the component is ready (1) or not (0)",
			ConstLabels: labels,
		}),
	}
}

// SetReady marks the component as ready.
func (m *Metrics) SetReady() {
	m.ComponentReady.Set(1)
}

// SetNotReady marks the component as not ready.
func (m *Metrics) SetNotReady() {
	m.ComponentReady.Set(0)
}
