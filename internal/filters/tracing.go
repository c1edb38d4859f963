package filters

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/filtergw/internal/async"
	"github.com/vyrodovalexey/filtergw/internal/exchange"
	"github.com/vyrodovalexey/filtergw/internal/filter"
	"github.com/vyrodovalexey/filtergw/internal/observability"
	"github.com/vyrodovalexey/filtergw/internal/route"
)

// Tracing opens a server span around the rest of the chain. Incoming trace
// context is extracted with the global propagator.
type Tracing struct {
	tracer     *observability.Tracer
	propagator propagation.TextMapPropagator
}

// NewTracing creates a Tracing filter.
func NewTracing(tracer *observability.Tracer) *Tracing {
	return &Tracing{
		tracer:     tracer,
		propagator: otel.GetTextMapPropagator(),
	}
}

// Name implements filter.Named.
func (f *Tracing) Name() string { return "Tracing" }

// Order implements filter.Ordered.
func (f *Tracing) Order() int { return OrderTracing }

// Filter implements filter.Filter.
func (f *Tracing) Filter(ex *exchange.Exchange, chain filter.Chain) *async.Completion {
	r := ex.Request()

	ctx := f.propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := f.tracer.StartSpan(ctx, "HTTP "+r.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("url.path", r.URL.Path),
			attribute.String("server.address", r.Host),
		),
	)

	if sc := span.SpanContext(); sc.HasTraceID() {
		ctx = observability.ContextWithTraceID(ctx, sc.TraceID().String())
	}

	traced := ex.WithContext(ctx)

	return async.Finally(chain.Filter(traced), func(_ struct{}, err error) {
		defer span.End()

		status := filter.ResponseStatus(ex, err)
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if rt, ok := route.FromExchange(ex); ok {
			span.SetAttributes(attribute.String("http.route", rt.ID))
		}

		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case status >= 500:
			span.SetStatus(codes.Error, "server error")
		}
	})
}
