package filters

import (
	"context"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/filtergw/internal/async"
	"github.com/vyrodovalexey/filtergw/internal/exchange"
	"github.com/vyrodovalexey/filtergw/internal/filter"
	"github.com/vyrodovalexey/filtergw/internal/observability"
)

// cbTracer is the OTEL tracer used for circuit breaker state changes.
var cbTracer = otel.Tracer("filtergw/circuitbreaker")

// CircuitBreaker trips after repeated failures of the rest of the chain and
// then rejects requests with 503 until the open timeout elapses. A failed
// completion or a 5xx response counts as a failure.
type CircuitBreaker struct {
	opts options
	cb   *gobreaker.TwoStepCircuitBreaker
}

// NewCircuitBreaker creates a CircuitBreaker filter. The breaker opens once
// at least threshold requests were seen in the interval and half of them
// failed.
func NewCircuitBreaker(name string, threshold int, timeout time.Duration, opts ...Option) *CircuitBreaker {
	f := &CircuitBreaker{opts: newOptions(opts)}

	thresholdU32 := safeIntToUint32(threshold)

	f.cb = gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: thresholdU32,
		Interval:    timeout,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= thresholdU32 && failureRatio >= 0.5
		},
		OnStateChange: f.onStateChange,
	})

	return f
}

func (f *CircuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	f.opts.logger.Info("circuit breaker state change",
		observability.String("name", name),
		observability.String("from", from.String()),
		observability.String("to", to.String()),
	)

	if f.opts.metrics != nil {
		f.opts.metrics.SetCircuitBreakerState(name, int(to))
	}

	_, span := cbTracer.Start(context.Background(),
		"circuitbreaker.state_change",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.AddEvent("state_change", trace.WithAttributes(
		attribute.String("circuitbreaker.name", name),
		attribute.String("circuitbreaker.from", from.String()),
		attribute.String("circuitbreaker.to", to.String()),
	))
	span.End()
}

// safeIntToUint32 safely converts int to uint32.
func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	if n > int(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n) //nolint:gosec // bounds checked above
}

// Name implements filter.Named.
func (f *CircuitBreaker) Name() string { return "CircuitBreaker" }

// Order implements filter.Ordered.
func (f *CircuitBreaker) Order() int { return OrderCircuitBreaker }

// State returns the current breaker state.
func (f *CircuitBreaker) State() gobreaker.State {
	return f.cb.State()
}

// Filter implements filter.Filter.
func (f *CircuitBreaker) Filter(ex *exchange.Exchange, chain filter.Chain) *async.Completion {
	done, err := f.cb.Allow()
	if err != nil {
		f.opts.logger.Debug("circuit breaker rejected request",
			observability.String("name", f.cb.Name()),
			observability.String("path", ex.Request().URL.Path),
			observability.Error(err),
		)
		f.opts.reject(ex, f.Name(), http.StatusServiceUnavailable, "service unavailable")
		return async.Complete()
	}

	return async.Finally(chain.Filter(ex), func(_ struct{}, err error) {
		done(err == nil && filter.ResponseStatus(ex, nil) < http.StatusInternalServerError)
	})
}
