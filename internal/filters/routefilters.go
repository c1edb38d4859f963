package filters

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/filtergw/internal/async"
	"github.com/vyrodovalexey/filtergw/internal/exchange"
	"github.com/vyrodovalexey/filtergw/internal/filter"
	"github.com/vyrodovalexey/filtergw/internal/route"
	"github.com/vyrodovalexey/filtergw/internal/util"
)

// OrderRouteFilters runs per-route filters after the route is chosen.
const OrderRouteFilters = 20

// Factory builds a filter from route filter arguments.
type Factory func(args map[string]string) (filter.Filter, error)

// Registry maps route filter names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a registry holding the built-in route filters.
func NewRegistry() *Registry {
	return &Registry{
		factories: map[string]Factory{
			"AddRequestHeader":    addRequestHeader,
			"RemoveRequestHeader": removeRequestHeader,
			"AddResponseHeader":   addResponseHeader,
			"StripPrefix":         stripPrefix,
			"PrefixPath":          prefixPath,
			"SetPath":             setPath,
		},
	}
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, factory Factory) {
	r.factories[name] = factory
}

// Names returns the registered filter names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build creates the filters for defs in order.
func (r *Registry) Build(defs []route.FilterDefinition) ([]filter.Filter, error) {
	out := make([]filter.Filter, 0, len(defs))
	for i, def := range defs {
		factory, ok := r.factories[def.Name]
		if !ok {
			return nil, fmt.Errorf("filters[%d]: unknown filter %q: %w", i, def.Name, util.ErrInvalidInput)
		}
		f, err := factory(def.Args)
		if err != nil {
			return nil, fmt.Errorf("filters[%d] %s: %w", i, def.Name, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// RouteFilters runs the filters configured on the selected route before
// the rest of the chain.
type RouteFilters struct {
	registry *Registry
}

// NewRouteFilters creates a RouteFilters filter.
func NewRouteFilters(registry *Registry) *RouteFilters {
	return &RouteFilters{registry: registry}
}

// Name implements filter.Named.
func (f *RouteFilters) Name() string { return "RouteFilters" }

// Order implements filter.Ordered.
func (f *RouteFilters) Order() int { return OrderRouteFilters }

// Filter implements filter.Filter.
func (f *RouteFilters) Filter(ex *exchange.Exchange, chain filter.Chain) *async.Completion {
	rt, ok := route.FromExchange(ex)
	if !ok || len(rt.Filters) == 0 {
		return chain.Filter(ex)
	}

	perRoute, err := f.registry.Build(rt.Filters)
	if err != nil {
		return async.Fail(err)
	}

	rest := filter.HandlerFunc(chain.Filter)
	return filter.NewFilteringHandler(rest, perRoute...).Handle(ex)
}

func requireArg(args map[string]string, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == "" {
		return "", fmt.Errorf("argument %q is required: %w", key, util.ErrInvalidInput)
	}
	return v, nil
}

// withRequest runs the chain with a modified copy of the request.
func withRequest(ex *exchange.Exchange, chain filter.Chain, mutate func(r *http.Request)) *async.Completion {
	r := ex.Request().Clone(ex.Context())
	mutate(r)
	return chain.Filter(ex.WithRequest(r))
}

func addRequestHeader(args map[string]string) (filter.Filter, error) {
	name, err := requireArg(args, "name")
	if err != nil {
		return nil, err
	}
	value := args["value"]
	return filter.FilterFunc(func(ex *exchange.Exchange, chain filter.Chain) *async.Completion {
		return withRequest(ex, chain, func(r *http.Request) { r.Header.Add(name, value) })
	}), nil
}

func removeRequestHeader(args map[string]string) (filter.Filter, error) {
	name, err := requireArg(args, "name")
	if err != nil {
		return nil, err
	}
	return filter.FilterFunc(func(ex *exchange.Exchange, chain filter.Chain) *async.Completion {
		return withRequest(ex, chain, func(r *http.Request) { r.Header.Del(name) })
	}), nil
}

func addResponseHeader(args map[string]string) (filter.Filter, error) {
	name, err := requireArg(args, "name")
	if err != nil {
		return nil, err
	}
	value := args["value"]
	return filter.FilterFunc(func(ex *exchange.Exchange, chain filter.Chain) *async.Completion {
		ex.Response().Header().Add(name, value)
		return chain.Filter(ex)
	}), nil
}

func stripPrefix(args map[string]string) (filter.Filter, error) {
	raw, err := requireArg(args, "parts")
	if err != nil {
		return nil, err
	}
	parts, err := strconv.Atoi(raw)
	if err != nil || parts < 0 {
		return nil, fmt.Errorf("argument \"parts\" must be a non-negative integer: %w", util.ErrInvalidInput)
	}
	return filter.FilterFunc(func(ex *exchange.Exchange, chain filter.Chain) *async.Completion {
		return withRequest(ex, chain, func(r *http.Request) {
			setRequestPath(r, stripSegments(r.URL.Path, parts))
		})
	}), nil
}

func prefixPath(args map[string]string) (filter.Filter, error) {
	prefix, err := requireArg(args, "prefix")
	if err != nil {
		return nil, err
	}
	prefix = "/" + strings.Trim(prefix, "/")
	return filter.FilterFunc(func(ex *exchange.Exchange, chain filter.Chain) *async.Completion {
		return withRequest(ex, chain, func(r *http.Request) {
			setRequestPath(r, strings.TrimSuffix(prefix, "/")+r.URL.Path)
		})
	}), nil
}

func setPath(args map[string]string) (filter.Filter, error) {
	path, err := requireArg(args, "path")
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return filter.FilterFunc(func(ex *exchange.Exchange, chain filter.Chain) *async.Completion {
		return withRequest(ex, chain, func(r *http.Request) { setRequestPath(r, path) })
	}), nil
}

func setRequestPath(r *http.Request, path string) {
	r.URL.Path = path
	r.URL.RawPath = ""
}

// stripSegments removes the first n path segments, always returning a
// rooted path.
func stripSegments(path string, n int) string {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if n >= len(segments) {
		return "/"
	}
	return "/" + strings.Join(segments[n:], "/")
}
