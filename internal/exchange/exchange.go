// Package exchange defines the per-request context that flows through the
// filter chain: the inbound request, the response being produced and a set
// of request-scoped attributes shared between filters.
package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Well-known attribute keys.
const (
	// AttrRoute holds the route.Route selected for the request.
	AttrRoute = "gateway.route"

	// AttrRequestID holds the request identifier.
	AttrRequestID = "gateway.request_id"

	// AttrClaims holds the authenticated token claims.
	AttrClaims = "gateway.claims"
)

// Exchange is the request/response pair handled by one chain traversal.
// The filter chain engine treats it as opaque apart from its context.
type Exchange struct {
	request  *http.Request
	response *Response
	attrs    *attributes
	start    time.Time
}

// attributes is shared by an exchange and every exchange derived from it.
type attributes struct {
	mu     sync.RWMutex
	values map[string]any
}

// New creates an exchange for an inbound HTTP request.
func New(w http.ResponseWriter, r *http.Request) *Exchange {
	return &Exchange{
		request:  r,
		response: newResponse(w),
		attrs:    &attributes{values: make(map[string]any)},
		start:    time.Now(),
	}
}

// Request returns the inbound request.
func (e *Exchange) Request() *http.Request {
	return e.request
}

// Response returns the response being produced.
func (e *Exchange) Response() *Response {
	return e.response
}

// Context returns the request context.
func (e *Exchange) Context() context.Context {
	return e.request.Context()
}

// StartTime returns the time the exchange was created.
func (e *Exchange) StartTime() time.Time {
	return e.start
}

// WithRequest returns a copy of the exchange carrying r. Response and
// attributes are shared with the original.
func (e *Exchange) WithRequest(r *http.Request) *Exchange {
	cp := *e
	cp.request = r
	return &cp
}

// WithContext returns a copy of the exchange whose request carries ctx.
func (e *Exchange) WithContext(ctx context.Context) *Exchange {
	return e.WithRequest(e.request.WithContext(ctx))
}

// Attribute returns the attribute stored under key.
func (e *Exchange) Attribute(key string) (any, bool) {
	e.attrs.mu.RLock()
	defer e.attrs.mu.RUnlock()
	v, ok := e.attrs.values[key]
	return v, ok
}

// SetAttribute stores an attribute.
func (e *Exchange) SetAttribute(key string, value any) {
	e.attrs.mu.Lock()
	defer e.attrs.mu.Unlock()
	e.attrs.values[key] = value
}

// StringAttribute returns a string attribute or "".
func (e *Exchange) StringAttribute(key string) string {
	v, _ := e.Attribute(key)
	s, _ := v.(string)
	return s
}

// Response wraps http.ResponseWriter, recording the status and whether the
// response has been committed. It is safe for use from several goroutines.
type Response struct {
	mu        sync.Mutex
	w         http.ResponseWriter
	status    int
	committed bool
	written   int64
}

func newResponse(w http.ResponseWriter) *Response {
	return &Response{w: w, status: http.StatusOK}
}

// Header returns the response header map.
func (r *Response) Header() http.Header {
	return r.w.Header()
}

// WriteHeader sends the status code. Only the first call has an effect.
func (r *Response) WriteHeader(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeHeaderLocked(code)
}

func (r *Response) writeHeaderLocked(code int) {
	if r.committed {
		return
	}
	r.status = code
	r.committed = true
	r.w.WriteHeader(code)
}

// Write writes body bytes, committing a 200 status if none was sent.
func (r *Response) Write(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.committed {
		r.writeHeaderLocked(http.StatusOK)
	}
	n, err := r.w.Write(b)
	r.written += int64(n)
	return n, err
}

// Flush implements http.Flusher for streaming upstream responses.
func (r *Response) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.w.(http.Flusher); ok {
		f.Flush()
	}
}

// Status returns the status code sent, or 200 if nothing was sent yet.
func (r *Response) Status() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Committed reports whether the status line has been sent.
func (r *Response) Committed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.committed
}

// BytesWritten returns the number of body bytes written.
func (r *Response) BytesWritten() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Unwrap returns the underlying writer for http.ResponseController.
func (r *Response) Unwrap() http.ResponseWriter {
	return r.w
}

// WriteJSONError writes a {"error": message} body with the given status.
// It is a no-op when the response is already committed.
func (r *Response) WriteJSONError(status int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.committed {
		return
	}
	r.w.Header().Set("Content-Type", "application/json")
	r.writeHeaderLocked(status)
	body, _ := json.Marshal(map[string]string{"error": message})
	n, _ := r.w.Write(body)
	r.written += int64(n)
}

// Compile-time interface assertions.
var (
	_ http.ResponseWriter = (*Response)(nil)
	_ http.Flusher        = (*Response)(nil)
)
