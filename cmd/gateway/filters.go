package main

import (
	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/filtergw/internal/filter"
	"github.com/vyrodovalexey/filtergw/internal/filters"
)

// buildFilters creates the global filters enabled in configuration. The
// result is unordered; callers sort it with filter.SortByOrder.
//
// Recovery, RequestID, Tracing, Metrics, RoutePredicate and RouteFilters
// are always present. AccessLog, RateLimit, RedisRateLimit, JWTAuth and
// CircuitBreaker follow their configuration sections.
func (a *application) buildFilters() ([]filter.Filter, error) {
	cfg := a.config.Spec.Filters
	common := []filters.Option{
		filters.WithLogger(a.logger),
		filters.WithMetrics(a.metrics),
	}

	list := []filter.Filter{
		filters.NewRecovery(common...),
		filters.NewRequestID(),
		filters.NewTracing(a.tracer),
		filters.NewMetrics(a.metrics),
		filters.NewRoutePredicate(a.routes, a.compiler, common...),
		filters.NewRouteFilters(a.registry),
	}

	if cfg.AccessLog != nil && cfg.AccessLog.Enabled {
		list = append(list, filters.NewAccessLog(common...))
	}

	if rl := cfg.RateLimit; rl != nil && rl.Enabled {
		a.rateLimit = filters.NewRateLimit(rl.RequestsPerSecond, rl.Burst, rl.PerClient, common...)
		if rl.ClientTTL > 0 {
			a.rateLimit.SetClientTTL(rl.ClientTTL.Duration())
		}
		list = append(list, a.rateLimit)
	}

	if rr := cfg.RedisRateLimit; rr != nil && rr.Enabled {
		a.redisClient = redis.NewClient(&redis.Options{
			Addr:     rr.Address,
			Password: rr.Password,
			DB:       rr.DB,
		})
		limiter := filters.NewRedisRateLimit(a.redisClient, rr.Limit, rr.Window.Duration(), common...)
		if rr.KeyPrefix != "" {
			limiter.WithKeyPrefix(rr.KeyPrefix)
		}
		list = append(list, limiter)
	}

	if j := cfg.JWT; j != nil && j.Enabled {
		auth, err := filters.NewJWTAuth(filters.JWTConfig{
			Secret:    []byte(j.Secret),
			Algorithm: j.Algorithm,
			Issuer:    j.Issuer,
			Audience:  j.Audience,
			Skew:      j.Skew.Duration(),
		}, common...)
		if err != nil {
			return nil, err
		}
		list = append(list, auth)
	}

	if cb := cfg.CircuitBreaker; cb != nil && cb.Enabled {
		list = append(list, filters.NewCircuitBreaker("upstream", cb.Threshold, cb.Timeout.Duration(), common...))
	}

	return list, nil
}
