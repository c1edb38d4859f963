package filters

import (
	"time"

	"github.com/vyrodovalexey/filtergw/internal/async"
	"github.com/vyrodovalexey/filtergw/internal/exchange"
	"github.com/vyrodovalexey/filtergw/internal/filter"
	"github.com/vyrodovalexey/filtergw/internal/observability"
	"github.com/vyrodovalexey/filtergw/internal/route"
)

// Metrics records request counts, durations and in-flight requests.
type Metrics struct {
	metrics *observability.Metrics
}

// NewMetrics creates a Metrics filter.
func NewMetrics(metrics *observability.Metrics) *Metrics {
	return &Metrics{metrics: metrics}
}

// Name implements filter.Named.
func (f *Metrics) Name() string { return "Metrics" }

// Order implements filter.Ordered.
func (f *Metrics) Order() int { return OrderMetrics }

// Filter implements filter.Filter.
func (f *Metrics) Filter(ex *exchange.Exchange, chain filter.Chain) *async.Completion {
	start := time.Now()
	f.metrics.IncrementActiveRequests()

	return async.Finally(chain.Filter(ex), func(_ struct{}, err error) {
		f.metrics.DecrementActiveRequests()

		routeID := observability.UnmatchedRoute
		if rt, ok := route.FromExchange(ex); ok {
			routeID = rt.ID
		}

		f.metrics.RecordRequest(
			ex.Request().Method,
			routeID,
			filter.ResponseStatus(ex, err),
			time.Since(start),
		)
	})
}
