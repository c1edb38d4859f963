package filter

import (
	"context"
	"errors"
	"net/http"

	"github.com/vyrodovalexey/filtergw/internal/async"
	"github.com/vyrodovalexey/filtergw/internal/exchange"
	"github.com/vyrodovalexey/filtergw/internal/util"
)

// StatusClientClosedRequest is reported when the client went away before a
// response was produced.
const StatusClientClosedRequest = 499

// StatusOf maps a chain failure to the HTTP status reported for it.
func StatusOf(err error) int {
	var panicErr *async.PanicError

	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	case errors.Is(err, ErrNoHandler), errors.As(err, &panicErr):
		return http.StatusInternalServerError
	case errors.Is(err, util.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, util.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}

// ResponseStatus returns the status already sent for ex, or the status
// err maps to when nothing has been written yet.
func ResponseStatus(ex *exchange.Exchange, err error) int {
	if ex.Response().Committed() {
		return ex.Response().Status()
	}
	return StatusOf(err)
}
