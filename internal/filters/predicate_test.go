package filters

import (
	"math"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/filtergw/internal/exchange"
	"github.com/vyrodovalexey/filtergw/internal/route"
	"github.com/vyrodovalexey/filtergw/internal/util"
)

func newCompiler(t *testing.T) *PredicateCompiler {
	t.Helper()
	c, err := NewPredicateCompiler()
	require.NoError(t, err)
	return c
}

func TestPredicateCompiler_Match(t *testing.T) {
	t.Parallel()

	c := newCompiler(t)

	r := newRequest(http.MethodPost, "http://api.example.com/users/42?debug=1")
	r.Header.Set("X-Tenant", "acme")
	vars := RequestVars(r)

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{name: "empty matches", expr: "", want: true},
		{name: "path prefix", expr: `request.path.startsWith("/users")`, want: true},
		{name: "method", expr: `request.method == "GET"`, want: false},
		{name: "host", expr: `request.host == "api.example.com"`, want: true},
		{name: "header", expr: `request.headers["x-tenant"] == "acme"`, want: true},
		{name: "query", expr: `"debug" in request.query && request.query["debug"] == "1"`, want: true},
		{name: "regex", expr: `request.path.matches("^/users/[0-9]+$")`, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := c.Match(tt.expr, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPredicateCompiler_Errors(t *testing.T) {
	t.Parallel()

	c := newCompiler(t)

	assert.NoError(t, c.Validate(""))
	assert.NoError(t, c.Validate(`request.path == "/"`))
	assert.ErrorIs(t, c.Validate(`request.path ==`), util.ErrInvalidInput)
	assert.ErrorIs(t, c.Validate(`"abc"`), util.ErrInvalidInput)
	assert.Error(t, c.Validate(`unknown_var == 1`))

	_, err := c.Match(`request.headers["missing"] == "x"`, RequestVars(newRequest(http.MethodGet, "/")))
	assert.Error(t, err)
}

func TestPredicateCompiler_CachesPrograms(t *testing.T) {
	t.Parallel()

	c := newCompiler(t)
	p1, err := c.Compile(`request.method == "GET"`)
	require.NoError(t, err)
	p2, err := c.Compile(`request.method == "GET"`)
	require.NoError(t, err)
	assert.Same(t, p1, p2)
}

func TestPredicateCompiler_BoundedCache(t *testing.T) {
	t.Parallel()

	c, err := NewPredicateCompiler(WithProgramCacheSize(2))
	require.NoError(t, err)

	for _, path := range []string{"/a", "/b", "/c", "/d"} {
		_, err := c.Compile(`request.path == "` + path + `"`)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, c.programs.Len())
	assert.False(t, c.programs.Contains(`request.path == "/a"`))
	assert.True(t, c.programs.Contains(`request.path == "/d"`))
}

func TestPredicateCompiler_InvalidCacheSize(t *testing.T) {
	t.Parallel()

	_, err := NewPredicateCompiler(WithProgramCacheSize(0))
	assert.Error(t, err)
}

func TestRoutePredicate(t *testing.T) {
	t.Parallel()

	ctx := background()
	repo := route.NewInMemoryRepository()
	for _, rt := range []route.Route{
		{ID: "broken", Predicate: `request.headers["nope"] == "x"`},
		{ID: "catch-all", Order: 100},
		{ID: "users-v1", Predicate: `request.path.startsWith("/users")`},
		{ID: "users-v2", Predicate: `request.path.startsWith("/users")`},
		{ID: "admin", Predicate: `request.path.startsWith("/admin")`, Order: -1},
		{ID: "posts", Predicate: `request.method == "POST"`},
	} {
		require.NoError(t, repo.Save(ctx, rt).Err())
	}

	f := NewRoutePredicate(repo, newCompiler(t))

	tests := []struct {
		name   string
		method string
		path   string
		want   string
	}{
		{name: "first insertion wins among equal order", method: http.MethodGet, path: "/users/1", want: "users-v1"},
		{name: "lower order first", method: http.MethodPost, path: "/admin", want: "admin"},
		{name: "method predicate", method: http.MethodPost, path: "/other", want: "posts"},
		{name: "catch all last", method: http.MethodGet, path: "/other", want: "catch-all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := &terminal{}
			_, ex, err := run(f, h, newRequest(tt.method, tt.path))
			require.NoError(t, err)
			assert.Equal(t, int64(1), h.calls.Load())

			rt, ok := route.FromExchange(ex)
			require.True(t, ok)
			assert.Equal(t, tt.want, rt.ID)
		})
	}
}

func TestRoutePredicate_NoMatch(t *testing.T) {
	t.Parallel()

	repo := route.NewInMemoryRepository()
	require.NoError(t, repo.Save(background(), route.Route{ID: "only", Predicate: `request.path == "/only"`}).Err())

	h := &terminal{}
	w, ex, err := run(NewRoutePredicate(repo, newCompiler(t)), h, newRequest(http.MethodGet, "/elsewhere"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, h.calls.Load())

	_, ok := route.FromExchange(ex)
	assert.False(t, ok)
}

func TestRoutePredicate_SeesStoreChanges(t *testing.T) {
	t.Parallel()

	repo := route.NewInMemoryRepository()
	f := NewRoutePredicate(repo, newCompiler(t))

	w, _, _ := run(f, &terminal{}, newRequest(http.MethodGet, "/"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.NoError(t, repo.Save(background(), route.Route{ID: "root"}).Err())
	w, _, _ = run(f, &terminal{}, newRequest(http.MethodGet, "/"))
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, repo.Delete(background(), "root").Err())
	w, _, _ = run(f, &terminal{}, newRequest(http.MethodGet, "/"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutePredicate_ExtremeOrders(t *testing.T) {
	t.Parallel()

	ctx := background()
	repo := route.NewInMemoryRepository()
	require.NoError(t, repo.Save(ctx, route.Route{ID: "last", Order: math.MaxInt}).Err())
	require.NoError(t, repo.Save(ctx, route.Route{ID: "first", Order: math.MinInt}).Err())

	f := NewRoutePredicate(repo, newCompiler(t))
	rt, ok := f.Lookup(exchange.New(nilWriter(), newRequest(http.MethodGet, "/")))
	require.True(t, ok)
	assert.Equal(t, "first", rt.ID)
}
