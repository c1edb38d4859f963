package route

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains Prometheus collectors for the route store.
type Metrics struct {
	routes     prometheus.Gauge
	operations *prometheus.CounterVec
}

// NewMetrics creates route store metrics registered with registerer.
// A nil registerer leaves the collectors unregistered.
func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}

	m := &Metrics{
		routes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "route_store",
			Name:      "routes",
			Help:      "Number of routes currently stored",
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "route_store",
			Name:      "operations_total",
			Help:      "Route store operations by type and outcome",
		}, []string{"operation", "status"}),
	}

	if registerer != nil {
		registerer.MustRegister(m.routes, m.operations)
	}

	return m
}

func (m *Metrics) record(operation, status string, size int) {
	m.operations.WithLabelValues(operation, status).Inc()
	m.routes.Set(float64(size))
}
