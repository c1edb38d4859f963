package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DependencyCheck is a named readiness check.
type DependencyCheck struct {
	name     string
	checkFn  func(ctx context.Context) error
	critical bool
}

// DependencyCheckOption configures a DependencyCheck.
type DependencyCheckOption func(*DependencyCheck)

// WithCritical marks whether a failure makes the gateway unready.
// Checks are critical by default.
func WithCritical(critical bool) DependencyCheckOption {
	return func(d *DependencyCheck) {
		d.critical = critical
	}
}

// NewDependencyCheck creates a check.
func NewDependencyCheck(
	name string,
	checkFn func(ctx context.Context) error,
	opts ...DependencyCheckOption,
) *DependencyCheck {
	d := &DependencyCheck{name: name, checkFn: checkFn, critical: true}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the name of the check.
func (d *DependencyCheck) Name() string {
	return d.name
}

// IsCritical reports whether a failure makes the gateway unready.
func (d *DependencyCheck) IsCritical() bool {
	return d.critical
}

func (d *DependencyCheck) run(ctx context.Context) Check {
	start := time.Now()
	err := d.checkFn(ctx)
	result := Check{Status: StatusHealthy, Duration: time.Since(start).String()}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
	}
	return result
}

// RedisHealthCheck pings a Redis server.
func RedisHealthCheck(name string, client redis.UniversalClient, opts ...DependencyCheckOption) *DependencyCheck {
	return NewDependencyCheck(name, func(ctx context.Context) error {
		if client == nil {
			return errors.New("redis client is nil")
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		return nil
	}, opts...)
}

// RunningCheck fails while running reports false.
func RunningCheck(name string, running func() bool, opts ...DependencyCheckOption) *DependencyCheck {
	return NewDependencyCheck(name, func(context.Context) error {
		if !running() {
			return fmt.Errorf("%s is not running", name)
		}
		return nil
	}, opts...)
}
