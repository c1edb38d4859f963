package filters

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/filtergw/internal/async"
	"github.com/vyrodovalexey/filtergw/internal/exchange"
	"github.com/vyrodovalexey/filtergw/internal/filter"
	"github.com/vyrodovalexey/filtergw/internal/observability"
	"github.com/vyrodovalexey/filtergw/internal/route"
)

func TestMetrics(t *testing.T) {
	t.Parallel()

	metrics := observability.NewMetrics("test")

	bind := filter.FilterFunc(func(ex *exchange.Exchange, chain filter.Chain) *async.Completion {
		route.Bind(ex, route.Route{ID: "users"})
		return chain.Filter(ex)
	})

	ok := filter.NewFilteringHandler(&terminal{}, NewMetrics(metrics), bind)
	require.NoError(t, ok.Handle(exchange.New(nilWriter(), newRequest(http.MethodGet, "/u"))).Err())
	require.NoError(t, ok.Handle(exchange.New(nilWriter(), newRequest(http.MethodGet, "/u"))).Err())

	failing := filter.NewFilteringHandler(&terminal{err: errors.New("boom")}, NewMetrics(metrics))
	require.Error(t, failing.Handle(exchange.New(nilWriter(), newRequest(http.MethodPost, "/x"))).Err())

	expected := `
# HELP test_requests_total Total number of requests handled by the filter chain
# TYPE test_requests_total counter
test_requests_total{method="GET",route="users",status="200"} 2
test_requests_total{method="POST",route="unmatched",status="502"} 1
`
	require.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "test_requests_total"))

	count, err := testutil.GatherAndCount(metrics.Registry(), "test_active_requests")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
