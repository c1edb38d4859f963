package main

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vyrodovalexey/filtergw/internal/config"
	"github.com/vyrodovalexey/filtergw/internal/gateway"
	"github.com/vyrodovalexey/filtergw/internal/health"
	"github.com/vyrodovalexey/filtergw/internal/observability"
)

// newMetricsListener serves Prometheus metrics and health probes.
func newMetricsListener(
	cfg config.MetricsConfig,
	metrics *observability.Metrics,
	checker *health.Checker,
	logger observability.Logger,
) *gateway.Listener {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET(cfg.Path, gin.WrapH(metrics.Handler()))
	checker.RegisterRoutes(engine)

	logger.Info("metrics server configured",
		observability.Int("port", cfg.Port),
		observability.String("metrics_path", cfg.Path),
	)

	return gateway.NewListener("metrics",
		config.ListenerConfig{Port: cfg.Port},
		engine,
		gateway.WithListenerLogger(logger),
	)
}

// reloadMetrics holds Prometheus metrics for configuration reloads.
type reloadMetrics struct {
	reloadTotal    *prometheus.CounterVec
	lastSuccess    prometheus.Gauge
	watcherRunning prometheus.Gauge
	routesLoaded   prometheus.Gauge
}

// newReloadMetrics registers reload metrics with registerer.
func newReloadMetrics(namespace string, registerer prometheus.Registerer) *reloadMetrics {
	factory := promauto.With(registerer)
	return &reloadMetrics{
		reloadTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_total",
				Help:      "Total number of configuration reloads",
			},
			[]string{"result"},
		),
		lastSuccess: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_reload_last_success_timestamp",
				Help:      "Timestamp of last successful config reload",
			},
		),
		watcherRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_watcher_running",
				Help:      "Whether the config file watcher is running (1=running, 0=stopped)",
			},
		),
		routesLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_routes",
				Help:      "Number of routes owned by the configuration file",
			},
		),
	}
}
