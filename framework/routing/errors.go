package routing

import (
	"errors"
	"fmt"
)

var (
	// ErrRouteNotFound indicates that no route matched, or that a route
	// name is unknown. The HTTP kernel maps it to 404.
	ErrRouteNotFound = errors.New("route not found")

	// ErrUnnamedRoute indicates a route table with more than one route
	// where not every route carries a name.
	ErrUnnamedRoute = errors.New("routes must be named when more than one route is configured")

	// ErrDuplicateRoute indicates a route name that is already taken.
	ErrDuplicateRoute = errors.New("duplicate route name")
)

// NotFoundError describes a failed lookup. Method and Path are set by
// Find, Name by URL.
type NotFoundError struct {
	Method string
	Path   string
	Name   string
}

func (e *NotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("routing: route '%s' not found", e.Name)
	}
	return fmt.Sprintf("routing: no route for %s %s", e.Method, e.Path)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrRouteNotFound }
