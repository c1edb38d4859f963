// Package gateway serves proxied traffic through the filter chain.
//
// Requests that reach the gin engine are wrapped in an exchange and handed
// to a filter.Handler. The adapter waits for the completion and, when the
// chain fails before anything has been written, maps the failure to an
// HTTP status.
//
// RouteSync keeps the route store in line with the routes declared in the
// configuration file across reloads.
//
// # Usage
//
//	gw, err := gateway.New(cfg, handler, gateway.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	if err := gw.Start(ctx); err != nil {
//	    return err
//	}
//	defer gw.Stop(ctx)
package gateway
