package filters

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/filtergw/internal/observability"
)

func TestCircuitBreaker_TripsOnFailures(t *testing.T) {
	t.Parallel()

	metrics := observability.NewMetrics("test")
	f := NewCircuitBreaker("upstream", 2, time.Minute, WithMetrics(metrics))
	failing := &terminal{err: errors.New("connection refused")}

	for i := 0; i < 2; i++ {
		_, _, err := run(f, failing, newRequest(http.MethodGet, "/"))
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, f.State())

	w, _, err := run(f, failing, newRequest(http.MethodGet, "/"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, int64(2), failing.calls.Load())
}

func TestCircuitBreaker_ServerErrorsCountAsFailures(t *testing.T) {
	t.Parallel()

	f := NewCircuitBreaker("upstream", 3, time.Minute)
	h := &terminal{status: http.StatusInternalServerError}

	for i := 0; i < 3; i++ {
		w, _, err := run(f, h, newRequest(http.MethodGet, "/"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	}
	assert.Equal(t, gobreaker.StateOpen, f.State())
}

func TestCircuitBreaker_StaysClosedOnSuccess(t *testing.T) {
	t.Parallel()

	f := NewCircuitBreaker("upstream", 2, time.Minute)
	h := &terminal{status: http.StatusNotFound}

	for i := 0; i < 5; i++ {
		_, _, err := run(f, h, newRequest(http.MethodGet, "/"))
		require.NoError(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, f.State())
	assert.Equal(t, int64(5), h.calls.Load())
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	t.Parallel()

	logger, logs := observedLogger()
	f := NewCircuitBreaker("upstream", 1, 20*time.Millisecond, WithLogger(logger))

	_, _, err := run(f, &terminal{err: errors.New("down")}, newRequest(http.MethodGet, "/"))
	require.Error(t, err)
	require.Equal(t, gobreaker.StateOpen, f.State())

	require.Eventually(t, func() bool {
		return f.State() == gobreaker.StateHalfOpen
	}, time.Second, 5*time.Millisecond)

	w, _, err := run(f, &terminal{}, newRequest(http.MethodGet, "/"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, gobreaker.StateClosed, f.State())
	assert.GreaterOrEqual(t, logs.FilterMessage("circuit breaker state change").Len(), 3)
}

func TestSafeIntToUint32(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint32(0), safeIntToUint32(-1))
	assert.Equal(t, uint32(7), safeIntToUint32(7))
}
