package filters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	"github.com/vyrodovalexey/filtergw/internal/async"
	"github.com/vyrodovalexey/filtergw/internal/exchange"
	"github.com/vyrodovalexey/filtergw/internal/filter"
)

// terminal is a handler recording how often it ran and the exchange it saw.
type terminal struct {
	calls  atomic.Int64
	last   atomic.Pointer[exchange.Exchange]
	status int
	err    error
}

func (h *terminal) Handle(ex *exchange.Exchange) *async.Completion {
	h.calls.Add(1)
	h.last.Store(ex)
	if h.err != nil {
		return async.Fail(h.err)
	}
	status := h.status
	if status == 0 {
		status = http.StatusOK
	}
	ex.Response().WriteHeader(status)
	return async.Complete()
}

func newRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// run sends r through f in front of h and returns the recorder and result.
func run(f filter.Filter, h filter.Handler, r *http.Request) (*httptest.ResponseRecorder, *exchange.Exchange, error) {
	w := httptest.NewRecorder()
	ex := exchange.New(w, r)
	err := filter.NewFilteringHandler(h, f).Handle(ex).Err()
	return w, ex, err
}

func background() context.Context { return context.Background() }

func nilWriter() http.ResponseWriter { return httptest.NewRecorder() }
