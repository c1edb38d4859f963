package route

import (
	"github.com/vyrodovalexey/filtergw/internal/exchange"
)

// Bind records r as the route selected for ex.
func Bind(ex *exchange.Exchange, r Route) {
	ex.SetAttribute(exchange.AttrRoute, r)
}

// FromExchange returns the route bound to ex, if any.
func FromExchange(ex *exchange.Exchange) (Route, bool) {
	v, ok := ex.Attribute(exchange.AttrRoute)
	if !ok {
		return Route{}, false
	}
	r, ok := v.(Route)
	return r, ok
}
