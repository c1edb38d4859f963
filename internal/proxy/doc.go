// Package proxy provides the gateway's terminal handler: an HTTP reverse
// proxy to the URI of the route selected by the routing filter.
//
// The proxy never writes error responses itself. Upstream failures become
// failed completions so the transport adapter can map them to a status.
package proxy
