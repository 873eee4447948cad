package container

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Every error returned by the container matches one of
// these through errors.Is.
var (
	// ErrServiceNotFound indicates an id that was never registered and
	// could not be auto-resolved.
	ErrServiceNotFound = errors.New("service not found")

	// ErrContainer indicates a failure while building a service.
	ErrContainer = errors.New("container error")

	// ErrCircularDependency indicates a constructor chain that loops back on itself.
	ErrCircularDependency = errors.New("circular dependency detected")
)

// NotFoundError reports a missing service. Param and Context are set when
// the lookup happened while autowiring a constructor parameter.
type NotFoundError struct {
	ID      string
	Param   string
	Context string
	Cause   error
}

func (e *NotFoundError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("container: service '%s' not found", e.ID)
	}
	return fmt.Sprintf(
		"container: cannot resolve dependency '%s' for parameter '%s' in '%s'; "+
			"register the service or make it a concrete type",
		e.ID, e.Param, e.Context,
	)
}

func (e *NotFoundError) Unwrap() error { return e.Cause }

func (e *NotFoundError) Is(target error) bool { return target == ErrServiceNotFound }

// Error wraps any failure raised while constructing a service.
type Error struct {
	ID      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("container: ")
	if e.ID != "" {
		b.WriteString(fmt.Sprintf("[%s] ", e.ID))
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool { return target == ErrContainer }

// CircularDependencyError carries the full build chain, ending with the
// type that was requested a second time.
type CircularDependencyError struct {
	Chain []string
}

func (e *CircularDependencyError) Error() string {
	return "container: circular dependency detected: " + strings.Join(e.Chain, " -> ")
}

func (e *CircularDependencyError) Is(target error) bool {
	return target == ErrCircularDependency || target == ErrContainer
}

func errNotFound(id string) error {
	return &NotFoundError{ID: id}
}

func errContainer(id, format string, args ...any) error {
	return &Error{ID: id, Message: fmt.Sprintf(format, args...)}
}

func wrapContainer(id string, cause error, format string, args ...any) error {
	return &Error{ID: id, Message: fmt.Sprintf(format, args...), Cause: cause}
}
