package filters

import (
	"cmp"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/google/cel-go/cel"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vyrodovalexey/filtergw/internal/async"
	"github.com/vyrodovalexey/filtergw/internal/exchange"
	"github.com/vyrodovalexey/filtergw/internal/filter"
	"github.com/vyrodovalexey/filtergw/internal/observability"
	"github.com/vyrodovalexey/filtergw/internal/route"
	"github.com/vyrodovalexey/filtergw/internal/util"
)

// DefaultProgramCacheSize is the number of compiled predicates kept by a
// PredicateCompiler.
const DefaultProgramCacheSize = 1024

// PredicateCompiler compiles route predicates. Programs are cached by
// expression text; the least recently used ones are evicted once the cache
// is full.
type PredicateCompiler struct {
	env      *cel.Env
	programs *lru.Cache[string, cel.Program]
}

// CompilerOption configures a PredicateCompiler.
type CompilerOption func(*compilerConfig)

type compilerConfig struct {
	cacheSize int
}

// WithProgramCacheSize sets how many compiled predicates are kept.
func WithProgramCacheSize(size int) CompilerOption {
	return func(c *compilerConfig) {
		c.cacheSize = size
	}
}

// NewPredicateCompiler creates a compiler with the request variable
// declared. Predicates see request.method, request.path, request.host,
// request.client_ip, request.headers and request.query.
func NewPredicateCompiler(opts ...CompilerOption) (*PredicateCompiler, error) {
	cfg := compilerConfig{cacheSize: DefaultProgramCacheSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	env, err := cel.NewEnv(
		cel.Variable("request", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	programs, err := lru.New[string, cel.Program](cfg.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create program cache: %w", err)
	}

	return &PredicateCompiler{env: env, programs: programs}, nil
}

// Compile returns the program for expr.
func (c *PredicateCompiler) Compile(expr string) (cel.Program, error) {
	if prg, ok := c.programs.Get(expr); ok {
		return prg, nil
	}

	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile predicate: %w", issues.Err())
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("predicate must evaluate to bool, got %s", t)
	}

	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}

	c.programs.Add(expr, prg)

	return prg, nil
}

// Validate reports whether expr is a valid predicate.
func (c *PredicateCompiler) Validate(expr string) error {
	if expr == "" {
		return nil
	}
	if _, err := c.Compile(expr); err != nil {
		return fmt.Errorf("%w: %w", util.ErrInvalidInput, err)
	}
	return nil
}

// Match evaluates expr against the request attributes in vars.
func (c *PredicateCompiler) Match(expr string, vars map[string]any) (bool, error) {
	if expr == "" {
		return true, nil
	}

	prg, err := c.Compile(expr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate predicate: %w", err)
	}

	matched, ok := out.Value().(bool)
	return ok && matched, nil
}

// RequestVars builds the CEL activation for r.
func RequestVars(r *http.Request) map[string]any {
	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		if len(v) > 0 {
			headers[strings.ToLower(k)] = v[0]
		}
	}

	query := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}

	return map[string]any{
		"request": map[string]any{
			"method":    r.Method,
			"path":      r.URL.Path,
			"host":      r.Host,
			"client_ip": util.ClientIP(r),
			"headers":   headers,
			"query":     query,
		},
	}
}

// RoutePredicate selects the route for a request: the first stored route,
// by Order and then insertion, whose predicate matches. Requests matching
// no route are rejected with 404.
type RoutePredicate struct {
	opts     options
	locator  route.Locator
	compiler *PredicateCompiler
}

// NewRoutePredicate creates a RoutePredicate filter reading routes from locator.
func NewRoutePredicate(locator route.Locator, compiler *PredicateCompiler, opts ...Option) *RoutePredicate {
	return &RoutePredicate{
		opts:     newOptions(opts),
		locator:  locator,
		compiler: compiler,
	}
}

// Name implements filter.Named.
func (f *RoutePredicate) Name() string { return "RoutePredicate" }

// Order implements filter.Ordered.
func (f *RoutePredicate) Order() int { return OrderRoutePredicate }

// Filter implements filter.Filter.
func (f *RoutePredicate) Filter(ex *exchange.Exchange, chain filter.Chain) *async.Completion {
	rt, ok := f.Lookup(ex)
	if !ok {
		f.opts.logger.Debug("no route matched",
			observability.String("method", ex.Request().Method),
			observability.String("path", ex.Request().URL.Path),
		)
		f.opts.reject(ex, f.Name(), http.StatusNotFound, "no route matched")
		return async.Complete()
	}

	route.Bind(ex, rt)
	return chain.Filter(ex)
}

// Lookup returns the first route matching the request of ex.
func (f *RoutePredicate) Lookup(ex *exchange.Exchange) (route.Route, bool) {
	var candidates []route.Route
	for rt := range f.locator.Routes(ex.Context()) {
		candidates = append(candidates, rt)
	}
	slices.SortStableFunc(candidates, func(a, b route.Route) int {
		return cmp.Compare(a.Order, b.Order)
	})

	vars := RequestVars(ex.Request())
	for _, rt := range candidates {
		matched, err := f.compiler.Match(rt.Predicate, vars)
		if err != nil {
			f.opts.logger.Warn("route predicate failed",
				observability.String("route_id", rt.ID),
				observability.Error(err),
			)
			continue
		}
		if matched {
			return rt, true
		}
	}

	return route.Route{}, false
}
