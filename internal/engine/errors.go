package engine

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the container engine. It keeps the
// HTTP status and the engine-reported reason so callers can classify
// not-found/conflict responses where those are benign.
type APIError struct {
	Op     string
	Status int
	Reason string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("engine %s: status %d: %s", e.Op, e.Status, e.Reason)
}

// IsNotFound reports whether err is an engine 404.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}

// IsNotModified reports whether err is an engine 304 (e.g. stopping an
// already-stopped container).
func IsNotModified(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusNotModified
}

// IsConflict reports whether err is an engine 409.
func IsConflict(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusConflict
}
