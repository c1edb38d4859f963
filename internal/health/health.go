package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// DefaultCheckTimeout bounds a readiness probe.
const DefaultCheckTimeout = 5 * time.Second

// Status represents the health status.
type Status string

const (
	// StatusHealthy indicates the service is healthy.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates the service is unhealthy.
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded indicates the service is degraded but operational.
	StatusDegraded Status = "degraded"
)

// HealthResponse represents the liveness response.
type HealthResponse struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadinessResponse represents the readiness response.
type ReadinessResponse struct {
	Status    Status           `json:"status"`
	Checks    map[string]Check `json:"checks,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Check represents an individual check result.
type Check struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// Checker provides health and readiness checking functionality.
type Checker struct {
	version   string
	startTime time.Time
	timeout   time.Duration
	metrics   *Metrics

	mu     sync.RWMutex
	checks map[string]*DependencyCheck
}

// Option configures a Checker.
type Option func(*Checker)

// WithTimeout bounds each readiness evaluation.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Checker) {
		c.timeout = timeout
	}
}

// WithMetrics records check outcomes.
func WithMetrics(m *Metrics) Option {
	return func(c *Checker) {
		c.metrics = m
	}
}

// NewChecker creates a health checker.
func NewChecker(version string, opts ...Option) *Checker {
	c := &Checker{
		version:   version,
		startTime: time.Now(),
		timeout:   DefaultCheckTimeout,
		checks:    make(map[string]*DependencyCheck),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds or replaces a check.
func (c *Checker) Register(check *DependencyCheck) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[check.Name()] = check
}

// Unregister removes a check.
func (c *Checker) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// Health returns the liveness status.
func (c *Checker) Health() HealthResponse {
	c.metrics.recordProbe("liveness")
	return HealthResponse{
		Status:    StatusHealthy,
		Version:   c.version,
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Timestamp: time.Now(),
	}
}

// Readiness runs every check concurrently and aggregates the results.
func (c *Checker) Readiness(ctx context.Context) ReadinessResponse {
	c.metrics.recordProbe("readiness")

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.mu.RLock()
	checks := make([]*DependencyCheck, 0, len(c.checks))
	for _, check := range c.checks {
		checks = append(checks, check)
	}
	c.mu.RUnlock()
	sort.Slice(checks, func(i, j int) bool { return checks[i].Name() < checks[j].Name() })

	results := make([]Check, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = check.run(ctx)
		}()
	}
	wg.Wait()

	response := ReadinessResponse{
		Status:    StatusHealthy,
		Checks:    make(map[string]Check, len(checks)),
		Timestamp: time.Now(),
	}
	for i, check := range checks {
		result := results[i]
		response.Checks[check.Name()] = result
		c.metrics.setStatus(check.Name(), result.Status == StatusHealthy)

		if result.Status != StatusUnhealthy {
			continue
		}
		if check.IsCritical() {
			response.Status = StatusUnhealthy
		} else if response.Status == StatusHealthy {
			response.Status = StatusDegraded
		}
	}

	return response
}

// RegisterRoutes mounts /health, /healthz, /livez and /readyz on r.
func (c *Checker) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health", c.handleHealth)
	r.GET("/healthz", c.handleHealth)
	r.GET("/livez", c.handleLiveness)
	r.GET("/readyz", c.handleReadiness)
}

func (c *Checker) handleHealth(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.Health())
}

func (c *Checker) handleLiveness(ctx *gin.Context) {
	c.metrics.recordProbe("liveness")
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (c *Checker) handleReadiness(ctx *gin.Context) {
	response := c.Readiness(ctx.Request.Context())

	status := http.StatusOK
	if response.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	ctx.JSON(status, response)
}
