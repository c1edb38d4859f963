package gateway

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/filtergw/internal/config"
	"github.com/vyrodovalexey/filtergw/internal/filter"
	"github.com/vyrodovalexey/filtergw/internal/observability"
)

// State represents the gateway state.
type State int32

const (
	// StateStopped indicates the gateway is stopped.
	StateStopped State = iota
	// StateStarting indicates the gateway is starting.
	StateStarting
	// StateRunning indicates the gateway is running.
	StateRunning
	// StateStopping indicates the gateway is stopping.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Gateway accepts client traffic and hands every request to the filter
// chain.
type Gateway struct {
	config    *config.GatewayConfig
	handler   filter.Handler
	logger    observability.Logger
	engine    *gin.Engine
	listener  *Listener
	state     atomic.Int32
	startTime time.Time
	mu        sync.RWMutex

	shutdownTimeout time.Duration
}

// Option is a functional option for configuring the gateway.
type Option func(*Gateway)

// WithLogger sets the logger for the gateway.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithShutdownTimeout overrides the configured shutdown timeout.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		g.shutdownTimeout = timeout
	}
}

// New creates a gateway serving handler. Usually handler is a
// *filter.FilteringHandler.
func New(cfg *config.GatewayConfig, handler filter.Handler, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if handler == nil {
		return nil, ErrNilHandler
	}

	g := &Gateway{
		config:          cfg,
		handler:         handler,
		logger:          observability.NopLogger(),
		shutdownTimeout: cfg.Spec.Listener.Timeouts.GetEffectiveShutdownTimeout(),
	}

	for _, opt := range opts {
		opt(g)
	}

	gin.SetMode(gin.ReleaseMode)
	g.engine = gin.New()
	g.engine.Use(gin.Recovery())
	// Every method and path belongs to the chain.
	g.engine.NoRoute(serveExchange(g.handler, g.logger))

	g.state.Store(int32(StateStopped))

	return g, nil
}

// Start binds the listener and begins serving.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrGatewayNotStopped
	}

	cfg := g.Config()
	g.logger.Info("starting gateway",
		observability.String("name", cfg.Metadata.Name),
	)

	listener := NewListener("proxy", cfg.Spec.Listener, g.engine, WithListenerLogger(g.logger))
	if err := listener.Start(ctx); err != nil {
		g.state.Store(int32(StateStopped))
		return err
	}

	g.mu.Lock()
	g.listener = listener
	g.startTime = time.Now()
	g.mu.Unlock()
	g.state.Store(int32(StateRunning))

	g.logger.Info("gateway started",
		observability.String("name", cfg.Metadata.Name),
		observability.String("address", listener.Addr().String()),
	)

	return nil
}

// Stop stops the gateway gracefully. Without a deadline on ctx the
// shutdown timeout applies.
func (g *Gateway) Stop(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return ErrGatewayNotRunning
	}

	g.logger.Info("stopping gateway")

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.shutdownTimeout)
		defer cancel()
	}

	g.mu.RLock()
	listener := g.listener
	g.mu.RUnlock()

	err := listener.Stop(ctx)
	g.state.Store(int32(StateStopped))

	g.logger.Info("gateway stopped")

	return err
}

// Reload records a new configuration. The listener address is fixed for
// the process lifetime; route changes go through RouteSync.
func (g *Gateway) Reload(cfg *config.GatewayConfig) error {
	if cfg == nil {
		return ErrNilConfig
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if cfg.Spec.Listener.Address() != g.config.Spec.Listener.Address() {
		g.logger.Warn("listener address change requires a restart",
			observability.String("current", g.config.Spec.Listener.Address()),
			observability.String("requested", cfg.Spec.Listener.Address()),
		)
	}
	g.config = cfg

	return nil
}

// State returns the current gateway state.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

// IsRunning returns true if the gateway is running.
func (g *Gateway) IsRunning() bool {
	return g.State() == StateRunning
}

// Uptime returns the time since the gateway started.
func (g *Gateway) Uptime() time.Duration {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.startTime.IsZero() {
		return 0
	}
	return time.Since(g.startTime)
}

// Config returns the current configuration.
func (g *Gateway) Config() *config.GatewayConfig {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.config
}

// Handler returns the HTTP handler serving proxied traffic.
func (g *Gateway) Handler() http.Handler {
	return g.engine
}

// Addr returns the bound listener address while running.
func (g *Gateway) Addr() net.Addr {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.listener == nil {
		return nil
	}
	return g.listener.Addr()
}
