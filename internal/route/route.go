package route

import (
	"maps"
	"slices"
)

// Route is a routing rule identified by ID. Everything apart from ID is
// opaque to the store and interpreted by filters.
//
// Routes are values: the store copies them on the way in and on the way
// out, so a stored route never changes except by a whole-value Save.
type Route struct {
	// ID uniquely identifies the route.
	ID string `yaml:"id" json:"id"`

	// URI is the upstream target requests matching this route are sent to.
	URI string `yaml:"uri" json:"uri"`

	// Predicate is a CEL expression deciding whether a request matches.
	// An empty predicate matches every request.
	Predicate string `yaml:"predicate,omitempty" json:"predicate,omitempty"`

	// Order ranks routes during matching; lower values are tried first.
	Order int `yaml:"order,omitempty" json:"order,omitempty"`

	// Filters configures per-route filters.
	Filters []FilterDefinition `yaml:"filters,omitempty" json:"filters,omitempty"`

	// Metadata carries free-form key/value pairs.
	Metadata map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// FilterDefinition names a filter and its arguments.
type FilterDefinition struct {
	Name string            `yaml:"name" json:"name"`
	Args map[string]string `yaml:"args,omitempty" json:"args,omitempty"`
}

// Clone returns a deep copy of r.
func (r Route) Clone() Route {
	cp := r
	cp.Metadata = maps.Clone(r.Metadata)
	if r.Filters != nil {
		cp.Filters = make([]FilterDefinition, len(r.Filters))
		for i, f := range r.Filters {
			cp.Filters[i] = FilterDefinition{Name: f.Name, Args: maps.Clone(f.Args)}
		}
	}
	return cp
}

// Equal reports whether r and other describe the same rule.
func (r Route) Equal(other Route) bool {
	if r.ID != other.ID || r.URI != other.URI || r.Predicate != other.Predicate || r.Order != other.Order {
		return false
	}
	if !maps.Equal(r.Metadata, other.Metadata) {
		return false
	}
	return slices.EqualFunc(r.Filters, other.Filters, func(a, b FilterDefinition) bool {
		return a.Name == b.Name && maps.Equal(a.Args, b.Args)
	})
}
