package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/vyrodovalexey/filtergw/internal/async"
	"github.com/vyrodovalexey/filtergw/internal/exchange"
	"github.com/vyrodovalexey/filtergw/internal/filter"
	"github.com/vyrodovalexey/filtergw/internal/observability"
	"github.com/vyrodovalexey/filtergw/internal/route"
	"github.com/vyrodovalexey/filtergw/internal/util"
)

// hopHeaders are headers that should not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ReverseProxy forwards requests to the URI of the exchange's route.
type ReverseProxy struct {
	logger        observability.Logger
	metrics       *Metrics
	transport     http.RoundTripper
	flushInterval time.Duration
	timeout       time.Duration
}

// Option is a functional option for configuring the proxy.
type Option func(*ReverseProxy)

// WithLogger sets the logger for the proxy.
func WithLogger(logger observability.Logger) Option {
	return func(p *ReverseProxy) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics for the proxy.
func WithMetrics(metrics *Metrics) Option {
	return func(p *ReverseProxy) {
		p.metrics = metrics
	}
}

// WithTransport sets the transport for the proxy.
func WithTransport(transport http.RoundTripper) Option {
	return func(p *ReverseProxy) {
		p.transport = transport
	}
}

// WithFlushInterval sets the flush interval for streaming responses.
func WithFlushInterval(interval time.Duration) Option {
	return func(p *ReverseProxy) {
		p.flushInterval = interval
	}
}

// WithTimeout bounds every upstream call. Zero means no limit.
func WithTimeout(timeout time.Duration) Option {
	return func(p *ReverseProxy) {
		p.timeout = timeout
	}
}

// NewReverseProxy creates a new reverse proxy.
func NewReverseProxy(opts ...Option) *ReverseProxy {
	p := &ReverseProxy{
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Handle implements filter.Handler. The upstream call runs on its own
// goroutine; the returned completion settles when the response has been
// copied or the call failed.
func (p *ReverseProxy) Handle(ex *exchange.Exchange) *async.Completion {
	rt, ok := route.FromExchange(ex)
	if !ok {
		return async.Fail(ErrNoRoute)
	}

	target, err := parseTarget(rt.URI)
	if err != nil {
		p.recordError(rt.ID, "invalid_target")
		return async.Fail(NewInvalidTargetError(rt.ID, rt.URI, err))
	}

	return async.Run(ex.Context(), func(ctx context.Context) error {
		return p.forward(ctx, ex, rt, target)
	})
}

func (p *ReverseProxy) forward(ctx context.Context, ex *exchange.Exchange, rt route.Route, target *url.URL) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	original := ex.Request()
	outbound := original.WithContext(ctx)

	var upstreamErr error
	proxy := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			p.director(req, target, original)
		},
		Transport:     p.transport,
		FlushInterval: p.flushInterval,
		ErrorHandler: func(_ http.ResponseWriter, _ *http.Request, err error) {
			upstreamErr = err
		},
	}

	start := time.Now()
	proxy.ServeHTTP(ex.Response(), outbound)
	duration := time.Since(start)

	if p.metrics != nil {
		p.metrics.backendDuration.WithLabelValues(rt.ID).Observe(duration.Seconds())
	}

	if upstreamErr == nil {
		p.logger.Debug("request proxied",
			observability.String("route", rt.ID),
			observability.String("target", target.String()),
			observability.Int("status", ex.Response().Status()),
			observability.Duration("duration", duration),
		)
		return nil
	}

	p.logger.Warn("upstream request failed",
		observability.String("route", rt.ID),
		observability.String("target", target.String()),
		observability.Error(upstreamErr),
	)

	// Surface the context error itself so callers can tell a client that
	// went away from an upstream that timed out.
	switch {
	case errors.Is(upstreamErr, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		p.recordError(rt.ID, "timeout")
		return context.DeadlineExceeded
	case errors.Is(upstreamErr, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		p.recordError(rt.ID, "canceled")
		return context.Canceled
	default:
		p.recordError(rt.ID, "upstream")
		return NewUpstreamFailure(rt.ID, target.String(), upstreamErr)
	}
}

// director modifies the request before forwarding.
func (p *ReverseProxy) director(req *http.Request, target *url.URL, originalReq *http.Request) {
	req.URL.Scheme = target.Scheme
	req.URL.Host = target.Host
	req.URL.Path, req.URL.RawPath = joinURLPath(target, req.URL)

	switch {
	case target.RawQuery == "":
	case req.URL.RawQuery == "":
		req.URL.RawQuery = target.RawQuery
	default:
		req.URL.RawQuery = target.RawQuery + "&" + req.URL.RawQuery
	}

	for _, h := range hopHeaders {
		req.Header.Del(h)
	}

	// X-Forwarded-For is appended by httputil.ReverseProxy after the director runs.
	if originalReq.TLS != nil {
		req.Header.Set("X-Forwarded-Proto", "https")
	} else {
		req.Header.Set("X-Forwarded-Proto", "http")
	}

	req.Header.Set("X-Forwarded-Host", originalReq.Host)
	req.Host = target.Host
}

func (p *ReverseProxy) recordError(routeID, errorType string) {
	if p.metrics != nil {
		p.metrics.errorsTotal.WithLabelValues(routeID, errorType).Inc()
	}
}

// parseTarget validates a route URI as an absolute http(s) URL.
func parseTarget(raw string) (*url.URL, error) {
	if err := util.ValidateURL(raw); err != nil {
		return nil, err
	}
	return url.Parse(raw)
}

// joinURLPath appends the request path to the target's base path.
func joinURLPath(target, req *url.URL) (path, rawpath string) {
	if target.RawPath == "" && req.RawPath == "" {
		return singleJoiningSlash(target.Path, req.Path), ""
	}

	tp := target.EscapedPath()
	rp := req.EscapedPath()

	aslash := strings.HasSuffix(tp, "/")
	bslash := strings.HasPrefix(rp, "/")

	switch {
	case aslash && bslash:
		return target.Path + req.Path[1:], tp + rp[1:]
	case !aslash && !bslash:
		return target.Path + "/" + req.Path, tp + "/" + rp
	}
	return target.Path + req.Path, tp + rp
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}

var _ filter.Handler = (*ReverseProxy)(nil)
