package filters

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vyrodovalexey/filtergw/internal/async"
	"github.com/vyrodovalexey/filtergw/internal/exchange"
	"github.com/vyrodovalexey/filtergw/internal/filter"
	"github.com/vyrodovalexey/filtergw/internal/observability"
	"github.com/vyrodovalexey/filtergw/internal/route"
)

func observedLogger() (observability.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return observability.NewZapLogger(zap.New(core)), logs
}

func TestAccessLog(t *testing.T) {
	t.Parallel()

	t.Run("logs matched route and status", func(t *testing.T) {
		t.Parallel()

		logger, logs := observedLogger()
		bind := filter.FilterFunc(func(ex *exchange.Exchange, chain filter.Chain) *async.Completion {
			route.Bind(ex, route.Route{ID: "users"})
			return chain.Filter(ex)
		})

		h := filter.NewFilteringHandler(&terminal{status: http.StatusCreated}, NewAccessLog(WithLogger(logger)), bind)
		ex := exchange.New(nilWriter(), newRequest(http.MethodPost, "/users?x=1"))
		require.NoError(t, h.Handle(ex).Err())

		entries := logs.FilterMessage("access").All()
		require.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
		assert.Equal(t, "POST", fields["method"])
		assert.Equal(t, "/users", fields["path"])
		assert.Equal(t, "x=1", fields["query"])
		assert.Equal(t, int64(http.StatusCreated), fields["status"])
		assert.Equal(t, "users", fields["route"])
	})

	t.Run("logs failure at warn", func(t *testing.T) {
		t.Parallel()

		logger, logs := observedLogger()
		_, _, err := run(NewAccessLog(WithLogger(logger)), &terminal{err: errors.New("dial failed")}, newRequest(http.MethodGet, "/x"))
		require.Error(t, err)

		entries := logs.FilterMessage("access").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
		fields := entries[0].ContextMap()
		assert.Equal(t, int64(http.StatusBadGateway), fields["status"])
		assert.Equal(t, observability.UnmatchedRoute, fields["route"])
		assert.Equal(t, "dial failed", fields["error"])
	})
}
