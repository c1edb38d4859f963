package filters

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/filtergw/internal/async"
	"github.com/vyrodovalexey/filtergw/internal/exchange"
	"github.com/vyrodovalexey/filtergw/internal/filter"
	"github.com/vyrodovalexey/filtergw/internal/observability"
	"github.com/vyrodovalexey/filtergw/internal/util"
)

// DefaultRedisKeyPrefix prefixes every window counter key.
const DefaultRedisKeyPrefix = "filtergw:ratelimit:"

// windowIncrementScript increments the counter of the current window and
// sets its expiry on first use.
// KEYS[1] = key
// ARGV[1] = window in milliseconds
var windowIncrementScript = redis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return current
`)

// RedisRateLimit is a fixed window limiter shared between gateway instances
// through Redis. When Redis is unavailable requests are allowed through.
type RedisRateLimit struct {
	opts   options
	client redis.UniversalClient
	limit  int64
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewRedisRateLimit creates a RedisRateLimit filter allowing limit requests
// per client IP in every window.
func NewRedisRateLimit(client redis.UniversalClient, limit int64, window time.Duration, opts ...Option) *RedisRateLimit {
	return &RedisRateLimit{
		opts:   newOptions(opts),
		client: client,
		limit:  limit,
		window: window,
		prefix: DefaultRedisKeyPrefix,
		now:    time.Now,
	}
}

// WithKeyPrefix overrides the counter key prefix.
func (f *RedisRateLimit) WithKeyPrefix(prefix string) *RedisRateLimit {
	f.prefix = prefix
	return f
}

// Name implements filter.Named.
func (f *RedisRateLimit) Name() string { return "RedisRateLimit" }

// Order implements filter.Ordered.
func (f *RedisRateLimit) Order() int { return OrderRedisRateLimit }

// Filter implements filter.Filter.
func (f *RedisRateLimit) Filter(ex *exchange.Exchange, chain filter.Chain) *async.Completion {
	clientIP := util.ClientIP(ex.Request())

	allowed := async.Go(ex.Context(), func(ctx context.Context) (bool, error) {
		ok, err := f.Allow(ctx, clientIP)
		if err != nil {
			f.opts.logger.Warn("redis rate limit check failed, allowing request",
				observability.String("client_ip", clientIP),
				observability.Error(err),
			)
			return true, nil
		}
		return ok, nil
	})

	return async.Then(allowed, func(ok bool) *async.Completion {
		if ok {
			return chain.Filter(ex)
		}

		f.opts.logger.Warn("distributed rate limit exceeded",
			observability.String("client_ip", clientIP),
			observability.String("path", ex.Request().URL.Path),
		)
		if f.opts.metrics != nil {
			f.opts.metrics.RecordRateLimitHit("redis")
		}
		ex.Response().Header().Set(HeaderRetryAfter, strconv.Itoa(f.retryAfter()))
		f.opts.reject(ex, f.Name(), http.StatusTooManyRequests, "rate limit exceeded")
		return async.Complete()
	})
}

// Allow increments the counter for key in the current window and reports
// whether it is still within the limit.
func (f *RedisRateLimit) Allow(ctx context.Context, key string) (bool, error) {
	windowMs := f.window.Milliseconds()
	if windowMs <= 0 {
		windowMs = 1
	}

	slot := f.now().UnixMilli() / windowMs
	redisKey := fmt.Sprintf("%s%s:%d", f.prefix, key, slot)

	count, err := windowIncrementScript.Run(ctx, f.client, []string{redisKey}, windowMs).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	return count <= f.limit, nil
}

// retryAfter returns the seconds left in the current window, at least 1.
func (f *RedisRateLimit) retryAfter() int {
	windowMs := f.window.Milliseconds()
	if windowMs <= 0 {
		return 1
	}
	remaining := windowMs - f.now().UnixMilli()%windowMs
	return max(int((remaining+999)/1000), 1)
}
