// Package metrics provides Prometheus metrics for the memory-hog component.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// States lists every value of the memoryhog_state label.
var States = []string{"initializing", "steady", "degraded"}

// Metrics holds memory-hog specific Prometheus metrics.
type Metrics struct {
	// Limit tracking
	LimitBytes     prometheus.Gauge
	LimitUnbounded prometheus.Gauge
	LimitChanges   prometheus.Counter
	ReadErrors     prometheus.Counter

	// Allocation
	AllocationBytes prometheus.Gauge
	Resizes         prometheus.Counter
	FillDuration    prometheus.Histogram

	// Loop
	PollIterations prometheus.Counter
	State          *prometheus.GaugeVec
	Degradations   *prometheus.CounterVec
}

// New registers all memory-hog metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LimitBytes: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "memoryhog_limit_bytes",
				Help: "Last bounded cgroup memory.max value in bytes",
			},
		),
		LimitUnbounded: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "memoryhog_limit_unbounded",
				Help: "Whether the last memory.max reading was 'max' (1) or not (0)",
			},
		),
		LimitChanges: f.NewCounter(
			prometheus.CounterOpts{
				Name: "memoryhog_limit_changes_total",
				Help: "Total number of bounded memory.max changes observed",
			},
		),
		ReadErrors: f.NewCounter(
			prometheus.CounterOpts{
				Name: "memoryhog_limit_read_errors_total",
				Help: "Total number of failed memory.max reads during polling",
			},
		),
		AllocationBytes: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "memoryhog_allocation_bytes",
				Help: "Current size of the tracked allocation in bytes",
			},
		),
		Resizes: f.NewCounter(
			prometheus.CounterOpts{
				Name: "memoryhog_resizes_total",
				Help: "Total number of allocation resizes",
			},
		),
		FillDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "memoryhog_fill_duration_seconds",
				Help:    "Time spent resizing and refilling the allocation",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		PollIterations: f.NewCounter(
			prometheus.CounterOpts{
				Name: "memoryhog_poll_iterations_total",
				Help: "Total number of poll iterations",
			},
		),
		State: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "memoryhog_state",
				Help: "Current tracker state (1 for the active state)",
			},
			[]string{"state"},
		),
		Degradations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memoryhog_degradations_total",
				Help: "Total number of poll iterations that left the allocation untouched",
			},
			[]string{"reason"},
		),
	}
}

// SetState marks state as the active one.
func (m *Metrics) SetState(state string) {
	for _, s := range States {
		v := 0.0
		if s == state {
			v = 1
		}
		m.State.WithLabelValues(s).Set(v)
	}
}
