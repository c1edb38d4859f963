package filters

import (
	"time"

	"github.com/vyrodovalexey/filtergw/internal/async"
	"github.com/vyrodovalexey/filtergw/internal/exchange"
	"github.com/vyrodovalexey/filtergw/internal/filter"
	"github.com/vyrodovalexey/filtergw/internal/observability"
	"github.com/vyrodovalexey/filtergw/internal/route"
	"github.com/vyrodovalexey/filtergw/internal/util"
)

// AccessLog logs one line per request once the rest of the chain completes.
type AccessLog struct {
	opts options
}

// NewAccessLog creates an AccessLog filter.
func NewAccessLog(opts ...Option) *AccessLog {
	return &AccessLog{opts: newOptions(opts)}
}

// Name implements filter.Named.
func (f *AccessLog) Name() string { return "AccessLog" }

// Order implements filter.Ordered.
func (f *AccessLog) Order() int { return OrderAccessLog }

// Filter implements filter.Filter.
func (f *AccessLog) Filter(ex *exchange.Exchange, chain filter.Chain) *async.Completion {
	start := time.Now()

	return async.Finally(chain.Filter(ex), func(_ struct{}, err error) {
		r := ex.Request()

		routeID := observability.UnmatchedRoute
		if rt, ok := route.FromExchange(ex); ok {
			routeID = rt.ID
		}

		fields := []observability.Field{
			observability.String("method", r.Method),
			observability.String("path", r.URL.Path),
			observability.String("query", r.URL.RawQuery),
			observability.Int("status", filter.ResponseStatus(ex, err)),
			observability.Int64("size", ex.Response().BytesWritten()),
			observability.Duration("latency", time.Since(start)),
			observability.String("client_ip", util.ClientIP(r)),
			observability.String("user_agent", r.UserAgent()),
			observability.String("route", routeID),
			observability.String("request_id", ex.StringAttribute(exchange.AttrRequestID)),
		}

		if err != nil {
			f.opts.logger.Warn("access", append(fields, observability.Error(err))...)
			return
		}
		f.opts.logger.Info("access", fields...)
	})
}
