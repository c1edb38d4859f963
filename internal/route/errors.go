package route

import (
	"fmt"

	"github.com/vyrodovalexey/filtergw/internal/util"
)

// NotFoundError is returned when deleting a route ID that is not stored.
type NotFoundError struct {
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("route not found: %s", e.ID)
}

// Is checks if the error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if target == util.ErrNotFound {
		return true
	}
	_, ok := target.(*NotFoundError)
	return ok
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(id string) *NotFoundError {
	return &NotFoundError{ID: id}
}

// errMissingID is returned by Save for a route without an ID.
var errMissingID = fmt.Errorf("route id is required: %w", util.ErrInvalidInput)
