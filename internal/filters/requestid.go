package filters

import (
	"github.com/google/uuid"

	"github.com/vyrodovalexey/filtergw/internal/async"
	"github.com/vyrodovalexey/filtergw/internal/exchange"
	"github.com/vyrodovalexey/filtergw/internal/filter"
	"github.com/vyrodovalexey/filtergw/internal/observability"
)

// RequestID assigns every request an identifier. An incoming X-Request-ID
// header is reused; otherwise a UUID is generated.
type RequestID struct {
	generate func() string
}

// NewRequestID creates a RequestID filter.
func NewRequestID() *RequestID {
	return NewRequestIDWithGenerator(func() string { return uuid.New().String() })
}

// NewRequestIDWithGenerator creates a RequestID filter using a custom ID generator.
func NewRequestIDWithGenerator(generator func() string) *RequestID {
	return &RequestID{generate: generator}
}

// Name implements filter.Named.
func (f *RequestID) Name() string { return "RequestID" }

// Order implements filter.Ordered.
func (f *RequestID) Order() int { return OrderRequestID }

// Filter implements filter.Filter.
func (f *RequestID) Filter(ex *exchange.Exchange, chain filter.Chain) *async.Completion {
	r := ex.Request()

	requestID := r.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = f.generate()
	}

	ex.SetAttribute(exchange.AttrRequestID, requestID)
	ex.Response().Header().Set(HeaderRequestID, requestID)

	r = r.Clone(observability.ContextWithRequestID(r.Context(), requestID))
	r.Header.Set(HeaderRequestID, requestID)

	return chain.Filter(ex.WithRequest(r))
}
