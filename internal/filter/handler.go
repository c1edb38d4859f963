package filter

import (
	"slices"
	"sync/atomic"

	"github.com/vyrodovalexey/filtergw/internal/async"
	"github.com/vyrodovalexey/filtergw/internal/exchange"
)

// FilteringHandler runs a fixed list of filters in front of a terminal
// handler. It is safe for concurrent use; each Handle call owns its cursor.
type FilteringHandler struct {
	handler Handler
	filters []Filter
}

// NewFilteringHandler creates a FilteringHandler. The filter list is copied;
// later changes to the caller's slice have no effect.
func NewFilteringHandler(handler Handler, filters ...Filter) *FilteringHandler {
	return &FilteringHandler{
		handler: handler,
		filters: slices.Clone(filters),
	}
}

// Handle runs the filter chain for ex.
func (h *FilteringHandler) Handle(ex *exchange.Exchange) *async.Completion {
	c := &chain{handler: h.handler, filters: h.filters}
	return c.Filter(ex)
}

// Filters returns a copy of the configured filters in chain order.
func (h *FilteringHandler) Filters() []Filter {
	return slices.Clone(h.filters)
}

// chain is the per-request cursor over a FilteringHandler's filters.
type chain struct {
	handler Handler
	filters []Filter
	index   atomic.Int64
}

// Filter runs the next filter, or the terminal handler once every filter
// has been entered. The cursor moves before the filter is invoked, so a
// filter that calls its chain more than once advances instead of running
// itself again.
func (c *chain) Filter(ex *exchange.Exchange) *async.Completion {
	for {
		if err := ex.Context().Err(); err != nil {
			return async.Fail(err)
		}

		i := c.index.Load()
		if i >= int64(len(c.filters)) {
			if c.handler == nil {
				return async.Fail(ErrNoHandler)
			}
			return c.handler.Handle(ex)
		}

		if c.index.CompareAndSwap(i, i+1) {
			return c.filters[i].Filter(ex, c)
		}
	}
}

var (
	_ Handler = (*FilteringHandler)(nil)
	_ Chain   = (*chain)(nil)
)
