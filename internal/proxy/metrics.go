package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus collectors for upstream calls.
type Metrics struct {
	errorsTotal     *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
}

// NewMetrics creates proxy metrics registered with registerer. A nil
// registerer leaves the collectors unregistered.
func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}

	factory := promauto.With(registerer)

	return &Metrics{
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "errors_total",
				Help:      "Total number of proxy errors",
			},
			[]string{"route", "error_type"},
		),
		backendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "backend_duration_seconds",
				Help:      "Duration of backend proxy requests",
				Buckets: []float64{
					.001, .005, .01, .025,
					.05, .1, .25, .5,
					1, 2.5, 5, 10,
				},
			},
			[]string{"route"},
		),
	}
}
