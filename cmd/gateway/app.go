package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/filtergw/internal/admin"
	"github.com/vyrodovalexey/filtergw/internal/config"
	"github.com/vyrodovalexey/filtergw/internal/filter"
	"github.com/vyrodovalexey/filtergw/internal/filters"
	"github.com/vyrodovalexey/filtergw/internal/gateway"
	"github.com/vyrodovalexey/filtergw/internal/health"
	"github.com/vyrodovalexey/filtergw/internal/observability"
	"github.com/vyrodovalexey/filtergw/internal/proxy"
	"github.com/vyrodovalexey/filtergw/internal/route"
)

// metricsNamespace prefixes every exported metric.
const metricsNamespace = "filtergw"

// application holds all application components.
type application struct {
	config   *config.GatewayConfig
	logger   observability.Logger
	metrics  *observability.Metrics
	reload   *reloadMetrics
	tracer   *observability.Tracer
	health   *health.Checker
	routes   *route.InMemoryRepository
	compiler *filters.PredicateCompiler
	registry *filters.Registry
	chain    *filter.FilteringHandler
	gateway  *gateway.Gateway
	admin    *admin.Server
	sync     *gateway.RouteSync

	rateLimit   *filters.RateLimit
	redisClient redis.UniversalClient

	adminListener   *gateway.Listener
	metricsListener *gateway.Listener
	watcher         *config.Watcher
}

// newApplication builds every component from cfg without starting any.
func newApplication(cfg *config.GatewayConfig, logger observability.Logger) (*application, error) {
	app := &application{config: cfg, logger: logger}

	app.metrics = observability.NewMetrics(metricsNamespace)
	app.metrics.SetBuildInfo(version, gitCommit, buildTime)
	registry := app.metrics.Registry()
	app.reload = newReloadMetrics(metricsNamespace, registry)

	tracing := cfg.Spec.Observability.Tracing
	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  tracing.ServiceName,
		OTLPEndpoint: tracing.OTLPEndpoint,
		SamplingRate: tracing.SamplingRate,
		Enabled:      tracing.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	app.tracer = tracer

	app.routes = route.NewInMemoryRepository(
		route.WithLogger(logger),
		route.WithMetrics(route.NewMetrics(metricsNamespace, registry)),
	)

	app.compiler, err = filters.NewPredicateCompiler()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize predicate compiler: %w", err)
	}
	app.registry = filters.NewRegistry()

	global, err := app.buildFilters()
	if err != nil {
		app.close(context.Background())
		return nil, err
	}

	upstream := proxy.NewReverseProxy(
		proxy.WithLogger(logger),
		proxy.WithMetrics(proxy.NewMetrics(metricsNamespace, registry)),
		proxy.WithTimeout(cfg.Spec.Proxy.Timeout.Duration()),
		proxy.WithFlushInterval(cfg.Spec.Proxy.FlushInterval.Duration()),
	)
	app.chain = filter.NewFilteringHandler(upstream, filter.SortByOrder(global)...)

	app.gateway, err = gateway.New(cfg, app.chain, gateway.WithLogger(logger))
	if err != nil {
		app.close(context.Background())
		return nil, err
	}
	app.sync = gateway.NewRouteSync(app.routes, logger)

	app.health = health.NewChecker(version,
		health.WithMetrics(health.NewMetrics(metricsNamespace, registry)),
	)
	app.health.Register(health.RunningCheck("gateway", app.gateway.IsRunning))
	if app.redisClient != nil {
		app.health.Register(health.RedisHealthCheck("redis", app.redisClient, health.WithCritical(false)))
	}

	app.admin = admin.NewServer(app.routes,
		admin.WithLogger(logger),
		admin.WithFilterLister(app.chain),
		admin.WithRouteValidator(func(r *route.Route) error {
			return app.validator().ValidateRoute(r)
		}),
	)

	return app, nil
}

// validator returns a configuration validator that also compiles route
// predicates and builds per-route filters. A fresh one is made per use.
func (a *application) validator() *config.Validator {
	return config.NewValidator(
		config.WithPredicateValidator(a.compiler.Validate),
		config.WithFilterValidator(func(defs []route.FilterDefinition) error {
			_, err := a.registry.Build(defs)
			return err
		}),
	)
}

// start synchronizes routes and brings up every listener.
func (a *application) start(ctx context.Context, configPath string) error {
	if err := a.sync.Sync(ctx, a.config.Spec.Routes); err != nil {
		return fmt.Errorf("failed to load routes: %w", err)
	}
	a.reload.routesLoaded.Set(float64(a.sync.Loaded()))

	if a.rateLimit != nil {
		a.rateLimit.StartAutoCleanup()
	}

	if err := a.gateway.Start(ctx); err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	spec := a.config.Spec
	if spec.Admin.Enabled {
		a.adminListener = gateway.NewListener("admin",
			config.ListenerConfig{Bind: spec.Admin.Bind, Port: spec.Admin.Port},
			a.admin.Handler(),
			gateway.WithListenerLogger(a.logger),
		)
		if err := a.adminListener.Start(ctx); err != nil {
			return fmt.Errorf("failed to start admin API: %w", err)
		}
	}

	if spec.Observability.Metrics.Enabled {
		a.metricsListener = newMetricsListener(spec.Observability.Metrics, a.metrics, a.health, a.logger)
		if err := a.metricsListener.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	if configPath != "" {
		a.watcher = a.startWatcher(ctx, configPath)
	}

	return nil
}

// shutdown stops listeners, then releases resources.
func (a *application) shutdown() {
	timeout := a.config.Spec.Listener.Timeouts.GetEffectiveShutdownTimeout()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Error("failed to stop config watcher", observability.Error(err))
		}
		a.reload.watcherRunning.Set(0)
	}

	for _, l := range []*gateway.Listener{a.metricsListener, a.adminListener} {
		if l == nil {
			continue
		}
		if err := l.Stop(ctx); err != nil {
			a.logger.Error("failed to stop listener",
				observability.String("name", l.Name()),
				observability.Error(err),
			)
		}
	}

	if a.gateway.IsRunning() {
		if err := a.gateway.Stop(ctx); err != nil {
			a.logger.Error("failed to stop gateway gracefully", observability.Error(err))
		}
	}

	a.close(ctx)
	a.logger.Info("gateway stopped")
}

// close releases resources that outlive listeners.
func (a *application) close(ctx context.Context) {
	var errs []error
	if a.rateLimit != nil {
		a.rateLimit.Stop()
	}
	if a.redisClient != nil {
		errs = append(errs, a.redisClient.Close())
	}
	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Error("failed to release resources", observability.Error(err))
	}
}
