// Package admin exposes the route store and the active filter chain over a
// small JSON API.
//
//	GET    /routes        list routes in store order
//	GET    /routes/:id    fetch one route
//	POST   /routes        create or replace a route
//	PUT    /routes/:id    create or replace the route with this id
//	DELETE /routes/:id    delete a route
//	GET    /filters       global filters in chain order
package admin
