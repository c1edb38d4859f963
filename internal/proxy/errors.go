package proxy

import (
	"errors"
	"fmt"

	"github.com/vyrodovalexey/filtergw/internal/util"
)

// ErrNoRoute indicates that the exchange reached the proxy without a route.
var ErrNoRoute = fmt.Errorf("no route selected for request: %w", util.ErrNotFound)

// ErrInvalidTargetURL indicates that a route URI cannot be proxied to.
var ErrInvalidTargetURL = errors.New("invalid target URL")

// ProxyError represents a proxy-related error with details.
type ProxyError struct {
	Op      string // Operation that failed
	Route   string // Route ID
	Target  string // Target URL if applicable
	Message string // Human-readable message
	Cause   error  // Underlying error
}

// Error implements the error interface.
func (e *ProxyError) Error() string {
	msg := fmt.Sprintf("proxy error [%s] route=%s", e.Op, e.Route)
	if e.Target != "" {
		msg += " target=" + e.Target
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ProxyError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ProxyError) Is(target error) bool {
	_, ok := target.(*ProxyError)
	return ok
}

// NewInvalidTargetError creates an error for an unusable route URI.
func NewInvalidTargetError(route, target string, cause error) *ProxyError {
	return &ProxyError{
		Op:      "parse_target",
		Route:   route,
		Target:  target,
		Message: "invalid target URL",
		Cause:   errors.Join(ErrInvalidTargetURL, cause),
	}
}

// NewUpstreamFailure creates an error for a failed upstream round trip.
func NewUpstreamFailure(route, target string, cause error) *ProxyError {
	return &ProxyError{
		Op:      "round_trip",
		Route:   route,
		Target:  target,
		Message: "upstream request failed",
		Cause:   util.NewUpstreamError(target, cause),
	}
}

// IsProxyError checks if an error is a ProxyError.
func IsProxyError(err error) bool {
	var proxyErr *ProxyError
	return errors.As(err, &proxyErr)
}
