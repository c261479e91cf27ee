// Package metrics provides Prometheus metrics for the prediction service
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	Predictions    *prometheus.CounterVec
	LookupFailures *prometheus.CounterVec
	ModelLoaded    prometheus.Gauge
}

// New registers all metrics on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glucorisk_predictions_total",
			Help: "Predictions served, by input mode and risk outcome",
		}, []string{"mode", "outcome"}),
		LookupFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glucorisk_lookup_failures_total",
			Help: "Patient lookups that ended without a prediction, by reason",
		}, []string{"reason"}),
		ModelLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "glucorisk_model_loaded",
			Help: "1 when the classifier artifact loaded at startup",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
