package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/filtergw/internal/exchange"
	"github.com/vyrodovalexey/filtergw/internal/filter"
	"github.com/vyrodovalexey/filtergw/internal/observability"
)

// serveExchange runs handler for one request and writes a status for any
// failure that left the response uncommitted.
func serveExchange(handler filter.Handler, logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ex := exchange.New(c.Writer, c.Request)

		// Wait for settlement rather than the request context: the handler
		// observes cancellation itself and may still hold the writer.
		err := handler.Handle(ex).Err()
		if err == nil {
			if !ex.Response().Committed() {
				ex.Response().WriteHeader(http.StatusOK)
			}
			c.Writer.WriteHeaderNow()
			return
		}

		status := filter.StatusOf(err)
		reqLogger := logger.WithContext(ex.Context())
		if status == filter.StatusClientClosedRequest {
			reqLogger.Debug("client closed request",
				observability.String("path", c.Request.URL.Path),
			)
			ex.Response().WriteHeader(status)
			c.Writer.WriteHeaderNow()
			return
		}

		if ex.Response().Committed() {
			reqLogger.Warn("request failed after response was committed",
				observability.String("path", c.Request.URL.Path),
				observability.Int("status", ex.Response().Status()),
				observability.Error(err),
			)
			c.Writer.WriteHeaderNow()
			return
		}

		reqLogger.Warn("request failed",
			observability.String("path", c.Request.URL.Path),
			observability.Int("status", status),
			observability.Error(err),
		)
		ex.Response().WriteJSONError(status, errorMessage(status))
	}
}

// errorMessage returns the client-facing message for status. Upstream and
// internal details stay in the log.
func errorMessage(status int) string {
	if status == http.StatusNotFound {
		return "no route matched"
	}
	return http.StatusText(status)
}
