// Package filter implements the filter chain engine.
//
// A FilteringHandler composes an ordered list of Filters with a terminal
// Handler. Each call to Handle walks the filters in order, passing every
// filter a Chain that runs the remainder. A filter that returns without
// calling its Chain short-circuits the request: later filters and the
// terminal handler never run.
//
// The engine does not recover, wrap or retry failures. Whatever completion a
// filter or the terminal handler returns is the result of Handle.
//
// # Usage
//
//	h := filter.NewFilteringHandler(proxyHandler,
//	    filters.NewRequestID(),
//	    filters.NewRoutePredicate(repo),
//	)
//	err := h.Handle(exchange.New(w, r)).Err()
package filter
