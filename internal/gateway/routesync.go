package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vyrodovalexey/filtergw/internal/observability"
	"github.com/vyrodovalexey/filtergw/internal/route"
)

// RouteSync mirrors the routes declared in configuration into a route
// store. Routes added through other writers (the admin API) are left alone
// unless a configuration declares the same id.
type RouteSync struct {
	writer route.Writer
	logger observability.Logger

	mu     sync.Mutex
	loaded map[string]struct{}
}

// NewRouteSync creates a RouteSync writing to w.
func NewRouteSync(w route.Writer, logger observability.Logger) *RouteSync {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &RouteSync{
		writer: w,
		logger: logger,
		loaded: make(map[string]struct{}),
	}
}

// Sync saves every route in routes, then deletes routes that an earlier
// Sync loaded and routes no longer declares. Deleting a route that is
// already gone is not an error. All failures are joined.
func (s *RouteSync) Sync(ctx context.Context, routes []route.Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	current := make(map[string]struct{}, len(routes))
	saved := 0

	for _, r := range routes {
		if err := s.writer.Save(ctx, r).Err(); err != nil {
			errs = append(errs, fmt.Errorf("save route %q: %w", r.ID, err))
			continue
		}
		current[r.ID] = struct{}{}
		saved++
	}

	removed := 0
	for id := range s.loaded {
		if _, ok := current[id]; ok {
			continue
		}
		err := s.writer.Delete(ctx, id).Err()
		switch {
		case err == nil:
			removed++
		case route.IsNotFound(err):
		default:
			errs = append(errs, fmt.Errorf("delete route %q: %w", id, err))
			// Keep tracking it so the next Sync retries.
			current[id] = struct{}{}
		}
	}
	s.loaded = current

	s.logger.Info("routes synchronized from configuration",
		observability.Int("saved", saved),
		observability.Int("removed", removed),
	)

	return errors.Join(errs...)
}

// Loaded returns the number of routes currently owned by configuration.
func (s *RouteSync) Loaded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.loaded)
}
