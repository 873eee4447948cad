package http

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is an error that carries the status the kernel answers with.
type HTTPError struct {
	Status  int
	Message string
	Cause   error
}

func (e *HTTPError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("http %d: %s: %v", e.Status, e.Message, e.Cause)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error { return e.Cause }

// Abort returns an *HTTPError. Handlers return it to stop with a status:
//
//	if user == nil {
//	    return nil, gohttp.Abort(http.StatusNotFound, "No such user.")
//	}
func Abort(status int, message ...string) error {
	return &HTTPError{Status: status, Message: first(message, http.StatusText(status))}
}

// StatusOf returns the status carried by err, or fallback.
func StatusOf(err error, fallback int) int {
	var he *HTTPError
	if errors.As(err, &he) && he.Status != 0 {
		return he.Status
	}
	return fallback
}
