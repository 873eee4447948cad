package dispatch

import (
	"errors"
	"fmt"
)

// ErrNoValidResponse indicates a handler that returned something other
// than a response or a Result.
var ErrNoValidResponse = errors.New("no valid response returned")

// Error wraps a failure of the matched route's handler.
type Error struct {
	Route  string // route name, or "METHOD path" for unnamed routes
	Action string
	Cause  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("dispatch: route %s (%s): %v", e.Route, e.Action, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }
