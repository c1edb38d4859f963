package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/vyrodovalexey/filtergw/internal/config"
	"github.com/vyrodovalexey/filtergw/internal/observability"
)

// maxHeaderBytes caps request header size on every listener.
const maxHeaderBytes = 1 << 20

// Listener serves an http.Handler on one address.
type Listener struct {
	name    string
	config  config.ListenerConfig
	handler http.Handler
	logger  observability.Logger

	mu      sync.Mutex
	server  *http.Server
	addr    net.Addr
	running atomic.Bool
}

// ListenerOption is a functional option for configuring a listener.
type ListenerOption func(*Listener)

// WithListenerLogger sets the logger for the listener.
func WithListenerLogger(logger observability.Logger) ListenerOption {
	return func(l *Listener) {
		l.logger = logger
	}
}

// NewListener creates a listener. Port 0 picks a free port on Start.
func NewListener(name string, cfg config.ListenerConfig, handler http.Handler, opts ...ListenerOption) *Listener {
	l := &Listener{
		name:    name,
		config:  cfg,
		handler: handler,
		logger:  observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Name returns the listener name.
func (l *Listener) Name() string {
	return l.name
}

// Addr returns the bound address once started, or nil.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addr
}

// Start binds the address and serves in the background.
func (l *Listener) Start(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return fmt.Errorf("%s: %w", l.name, ErrListenerRunning)
	}

	address := l.config.Address()
	timeouts := l.config.Timeouts

	server := &http.Server{
		Addr:              address,
		Handler:           l.handler,
		ReadTimeout:       timeouts.GetEffectiveReadTimeout(),
		ReadHeaderTimeout: timeouts.GetEffectiveReadHeaderTimeout(),
		WriteTimeout:      timeouts.GetEffectiveWriteTimeout(),
		IdleTimeout:       timeouts.GetEffectiveIdleTimeout(),
		MaxHeaderBytes:    maxHeaderBytes,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		l.running.Store(false)
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	l.mu.Lock()
	l.server = server
	l.addr = ln.Addr()
	l.mu.Unlock()

	l.logger.Info("listener started",
		observability.String("name", l.name),
		observability.String("address", ln.Addr().String()),
	)

	go l.serve(server, ln)

	return nil
}

func (l *Listener) serve(server *http.Server, ln net.Listener) {
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.logger.Error("listener error",
			observability.String("name", l.name),
			observability.Error(err),
		)
	}
}

// Stop shuts the server down, waiting for in-flight requests until ctx ends.
func (l *Listener) Stop(ctx context.Context) error {
	if !l.running.CompareAndSwap(true, false) {
		return nil
	}

	l.mu.Lock()
	server := l.server
	l.mu.Unlock()

	l.logger.Info("stopping listener", observability.String("name", l.name))

	if err := server.Shutdown(ctx); err != nil {
		if closeErr := server.Close(); closeErr != nil {
			return fmt.Errorf("failed to close listener: %w", closeErr)
		}
		return fmt.Errorf("failed to shutdown listener gracefully: %w", err)
	}

	l.logger.Info("listener stopped", observability.String("name", l.name))

	return nil
}

// IsRunning returns true if the listener is running.
func (l *Listener) IsRunning() bool {
	return l.running.Load()
}
