package filter

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/vyrodovalexey/filtergw/internal/async"
	"github.com/vyrodovalexey/filtergw/internal/exchange"
)

// ErrNoHandler is returned when a chain reaches its end without a terminal
// handler. It indicates a wiring bug and is never retried.
var ErrNoHandler = errors.New("filter chain has no terminal handler")

// Handler fulfils a request once every filter has proceeded.
type Handler interface {
	Handle(ex *exchange.Exchange) *async.Completion
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ex *exchange.Exchange) *async.Completion

// Handle implements Handler.
func (f HandlerFunc) Handle(ex *exchange.Exchange) *async.Completion {
	return f(ex)
}

// Chain is the continuation handed to a filter. Calling Filter runs the
// rest of the chain for ex.
type Chain interface {
	Filter(ex *exchange.Exchange) *async.Completion
}

// Filter is a unit of request processing.
type Filter interface {
	Filter(ex *exchange.Exchange, chain Chain) *async.Completion
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(ex *exchange.Exchange, chain Chain) *async.Completion

// Filter implements Filter.
func (f FilterFunc) Filter(ex *exchange.Exchange, chain Chain) *async.Completion {
	return f(ex, chain)
}

// Ordered is implemented by filters that declare their position.
type Ordered interface {
	Order() int
}

// Named is implemented by filters that report a name for introspection.
type Named interface {
	Name() string
}

// OrderOf returns the declared order of f, or 0.
func OrderOf(f Filter) int {
	if o, ok := f.(Ordered); ok {
		return o.Order()
	}
	return 0
}

// NameOf returns the name of f, falling back to its type.
func NameOf(f Filter) string {
	if n, ok := f.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", f)
}

// SortByOrder returns a copy of filters sorted by OrderOf. Filters with the
// same order keep their relative position.
func SortByOrder(filters []Filter) []Filter {
	out := slices.Clone(filters)
	slices.SortStableFunc(out, func(a, b Filter) int {
		return cmp.Compare(OrderOf(a), OrderOf(b))
	})
	return out
}
