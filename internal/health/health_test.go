package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failing(msg string) func(context.Context) error {
	return func(context.Context) error { return errors.New(msg) }
}

func ok(context.Context) error { return nil }

func TestChecker_Readiness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		checks []*DependencyCheck
		want   Status
	}{
		{name: "no checks", want: StatusHealthy},
		{
			name:   "all healthy",
			checks: []*DependencyCheck{NewDependencyCheck("a", ok), NewDependencyCheck("b", ok)},
			want:   StatusHealthy,
		},
		{
			name: "non-critical failure degrades",
			checks: []*DependencyCheck{
				NewDependencyCheck("a", ok),
				NewDependencyCheck("b", failing("down"), WithCritical(false)),
			},
			want: StatusDegraded,
		},
		{
			name: "critical failure",
			checks: []*DependencyCheck{
				NewDependencyCheck("a", failing("down")),
				NewDependencyCheck("b", failing("down"), WithCritical(false)),
			},
			want: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := NewChecker("test")
			for _, check := range tt.checks {
				c.Register(check)
			}

			resp := c.Readiness(context.Background())
			assert.Equal(t, tt.want, resp.Status)
			assert.Len(t, resp.Checks, len(tt.checks))
		})
	}
}

func TestChecker_ReadinessTimeout(t *testing.T) {
	t.Parallel()

	c := NewChecker("test", WithTimeout(10*time.Millisecond))
	c.Register(NewDependencyCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	resp := c.Readiness(context.Background())
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Contains(t, resp.Checks["slow"].Message, "deadline exceeded")
}

func TestChecker_Unregister(t *testing.T) {
	t.Parallel()

	c := NewChecker("test")
	c.Register(NewDependencyCheck("a", failing("down")))
	c.Unregister("a")

	assert.Equal(t, StatusHealthy, c.Readiness(context.Background()).Status)
}

func TestChecker_Routes(t *testing.T) {
	t.Parallel()

	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	c := NewChecker("1.2.3", WithMetrics(NewMetrics("test", reg)))
	running := true
	c.Register(RunningCheck("gateway", func() bool { return running }))

	engine := gin.New()
	c.RegisterRoutes(engine)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/health")
	require.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, StatusHealthy, health.Status)
	assert.Equal(t, "1.2.3", health.Version)

	assert.Equal(t, http.StatusOK, get("/livez").Code)
	assert.Equal(t, http.StatusOK, get("/readyz").Code)

	running = false
	w = get("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "gateway is not running")

	expected := `
# HELP test_health_check_status Current health check status (1=healthy, 0=unhealthy)
# TYPE test_health_check_status gauge
test_health_check_status{check="gateway"} 0
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "test_health_check_status"))
	assert.Equal(t, 2, testutil.CollectAndCount(c.metrics.probesTotal))
}

func TestRedisHealthCheck(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	check := RedisHealthCheck("redis", client, WithCritical(false))
	assert.False(t, check.IsCritical())
	assert.Equal(t, StatusHealthy, check.run(context.Background()).Status)

	mr.Close()
	result := check.run(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Contains(t, result.Message, "redis ping failed")

	nilCheck := RedisHealthCheck("nil", nil)
	assert.Equal(t, "redis client is nil", nilCheck.run(context.Background()).Message)
}
