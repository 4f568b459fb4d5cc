// Package metrics records per-loader load outcomes as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// LoadMetrics holds the load metrics on a private registry, so a process
// can create several without registration conflicts.
type LoadMetrics struct {
	registry *prometheus.Registry

	loadsTotal   *prometheus.CounterVec
	loadedValues *prometheus.GaugeVec
	loadDuration *prometheus.HistogramVec
}

// New creates LoadMetrics on a fresh registry.
func New() *LoadMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &LoadMetrics{
		registry: reg,
		loadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretbox_loader_loads_total",
				Help: "Total number of loader runs by outcome",
			},
			[]string{"loader", "result"},
		),
		loadedValues: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "secretbox_loader_values",
				Help: "Number of values held by a loader after its last run",
			},
			[]string{"loader"},
		),
		loadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "secretbox_loader_duration_seconds",
				Help:    "Duration of loader runs in seconds",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"loader"},
		),
	}
}

// ObserveLoad records one loader run.
func (m *LoadMetrics) ObserveLoad(loaderName string, ok bool, values int, duration time.Duration) {
	result := ResultFailure
	if ok {
		result = ResultSuccess
	}
	m.loadsTotal.WithLabelValues(loaderName, result).Inc()
	m.loadedValues.WithLabelValues(loaderName).Set(float64(values))
	m.loadDuration.WithLabelValues(loaderName).Observe(duration.Seconds())
}

// Gatherer exposes the registry, e.g. for promhttp or tests.
func (m *LoadMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the metrics in the text exposition format, for the
// node_exporter textfile collector. The file is replaced atomically.
func (m *LoadMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
