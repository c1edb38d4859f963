package filters

import (
	"github.com/vyrodovalexey/filtergw/internal/exchange"
	"github.com/vyrodovalexey/filtergw/internal/observability"
)

// Default filter positions. Lower values run first.
const (
	OrderRecovery       = -300
	OrderRequestID      = -200
	OrderTracing        = -150
	OrderAccessLog      = -100
	OrderMetrics        = -90
	OrderRateLimit      = -50
	OrderRedisRateLimit = -45
	OrderJWTAuth        = -20
	OrderRoutePredicate = 0
	OrderCircuitBreaker = 10
)

// Common HTTP header names.
const (
	HeaderRequestID       = "X-Request-ID"
	HeaderRetryAfter      = "Retry-After"
	HeaderAuthorization   = "Authorization"
	HeaderWWWAuthenticate = "WWW-Authenticate"
)

// options holds the dependencies shared by all filters.
type options struct {
	logger  observability.Logger
	metrics *observability.Metrics
}

// Option configures a filter.
type Option func(*options)

// WithLogger sets the filter logger.
func WithLogger(logger observability.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics a filter reports to.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

func newOptions(opts []Option) options {
	o := options{logger: observability.NopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// reject writes an error response for a short-circuited request.
func (o *options) reject(ex *exchange.Exchange, name string, status int, message string) {
	ex.Response().WriteJSONError(status, message)
	if o.metrics != nil {
		o.metrics.RecordShortCircuit(name, status)
	}
}
