// Package filters provides the gateway's built-in filters.
//
// Every filter implements filter.Filter together with filter.Named and
// filter.Ordered, so the gateway can sort a configured set with
// filter.SortByOrder. Filters that reject a request write the error
// response themselves and complete without calling the rest of the chain.
//
// Filters that act after the rest of the chain (access log, metrics,
// tracing, circuit breaker) attach to the completion returned by the chain
// rather than blocking on it.
package filters
