package route

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/vyrodovalexey/filtergw/internal/async"
	"github.com/vyrodovalexey/filtergw/internal/observability"
	"github.com/vyrodovalexey/filtergw/internal/util"
)

// Writer mutates the set of stored routes.
type Writer interface {
	// Save inserts route, or replaces the stored route with the same ID.
	Save(ctx context.Context, route Route) *async.Completion

	// SaveFrom saves the route src resolves to. A failure of src is
	// propagated and nothing is stored.
	SaveFrom(ctx context.Context, src *async.Future[Route]) *async.Completion

	// Delete removes the route with id. Deleting an absent ID fails with
	// a *NotFoundError.
	Delete(ctx context.Context, id string) *async.Completion

	// DeleteFrom deletes the ID src resolves to.
	DeleteFrom(ctx context.Context, src *async.Future[string]) *async.Completion
}

// Locator reads stored routes.
type Locator interface {
	// Routes returns a sequence over the stored routes in insertion order.
	// Each iteration observes the store as of the moment it starts.
	Routes(ctx context.Context) iter.Seq[Route]

	// Get returns the route with id.
	Get(ctx context.Context, id string) (Route, bool)
}

// Repository is the full route store capability.
type Repository interface {
	Writer
	Locator
}

// Option is a functional option for configuring the repository.
type Option func(*InMemoryRepository)

// WithLogger sets the logger for the repository.
func WithLogger(logger observability.Logger) Option {
	return func(r *InMemoryRepository) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics for the repository.
func WithMetrics(metrics *Metrics) Option {
	return func(r *InMemoryRepository) {
		r.metrics = metrics
	}
}

// InMemoryRepository is a concurrency-safe, insertion-ordered route store.
// A replaced route keeps the position of the route it replaces.
type InMemoryRepository struct {
	mu      sync.RWMutex
	routes  map[string]Route
	order   []string
	logger  observability.Logger
	metrics *Metrics
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository(opts ...Option) *InMemoryRepository {
	r := &InMemoryRepository{
		routes: make(map[string]Route),
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Save implements Writer.
func (r *InMemoryRepository) Save(ctx context.Context, route Route) *async.Completion {
	if err := ctx.Err(); err != nil {
		return async.Fail(err)
	}
	if route.ID == "" {
		r.record("save", "error")
		return async.Fail(errMissingID)
	}

	stored := route.Clone()

	r.mu.Lock()
	_, replaced := r.routes[stored.ID]
	if !replaced {
		r.order = append(r.order, stored.ID)
	}
	r.routes[stored.ID] = stored
	r.recordSize("save", "success", len(r.order))
	r.mu.Unlock()

	r.logger.Debug("route saved",
		observability.String("route_id", stored.ID),
		observability.Bool("replaced", replaced),
	)

	return async.Complete()
}

// SaveFrom implements Writer.
func (r *InMemoryRepository) SaveFrom(ctx context.Context, src *async.Future[Route]) *async.Completion {
	if src == nil {
		return async.Fail(fmt.Errorf("route source is nil: %w", util.ErrInvalidInput))
	}
	return async.Then(src, func(route Route) *async.Completion {
		return r.Save(ctx, route)
	})
}

// Delete implements Writer.
func (r *InMemoryRepository) Delete(ctx context.Context, id string) *async.Completion {
	if err := ctx.Err(); err != nil {
		return async.Fail(err)
	}

	r.mu.Lock()
	if _, ok := r.routes[id]; !ok {
		r.recordSize("delete", "not_found", len(r.order))
		r.mu.Unlock()
		return async.Fail(NewNotFoundError(id))
	}
	delete(r.routes, id)
	r.order = slices.DeleteFunc(r.order, func(v string) bool { return v == id })
	r.recordSize("delete", "success", len(r.order))
	r.mu.Unlock()

	r.logger.Debug("route deleted", observability.String("route_id", id))

	return async.Complete()
}

// DeleteFrom implements Writer.
func (r *InMemoryRepository) DeleteFrom(ctx context.Context, src *async.Future[string]) *async.Completion {
	if src == nil {
		return async.Fail(fmt.Errorf("route id source is nil: %w", util.ErrInvalidInput))
	}
	return async.Then(src, func(id string) *async.Completion {
		return r.Delete(ctx, id)
	})
}

// Routes implements Locator. The sequence can be ranged over any number of
// times; each pass snapshots the store when it begins. Iteration stops
// early once ctx is done.
func (r *InMemoryRepository) Routes(ctx context.Context) iter.Seq[Route] {
	return func(yield func(Route) bool) {
		for _, route := range r.snapshot() {
			if ctx.Err() != nil {
				return
			}
			if !yield(route.Clone()) {
				return
			}
		}
	}
}

// Get implements Locator.
func (r *InMemoryRepository) Get(_ context.Context, id string) (Route, bool) {
	r.mu.RLock()
	route, ok := r.routes[id]
	r.mu.RUnlock()

	if !ok {
		return Route{}, false
	}
	return route.Clone(), true
}

// Len returns the number of stored routes.
func (r *InMemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// snapshot returns the stored routes in insertion order. Stored routes are
// never mutated in place, so sharing their nested maps is safe until the
// caller clones them.
func (r *InMemoryRepository) snapshot() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Route, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.routes[id])
	}
	return out
}

func (r *InMemoryRepository) record(operation, status string) {
	if r.metrics == nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.recordSize(operation, status, len(r.order))
}

// recordSize must be called with r.mu held so the gauge tracks the store.
func (r *InMemoryRepository) recordSize(operation, status string, size int) {
	if r.metrics == nil {
		return
	}
	r.metrics.record(operation, status, size)
}

// IsNotFound reports whether err reports a missing route.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

var _ Repository = (*InMemoryRepository)(nil)
