package wgapi

import (
	"errors"
	"fmt"
	"net/http"
)

// RemoteAPIError is the only error kind the client returns for a failed call.
// Status is the HTTP status, or 0 when the gateway could not be reached.
type RemoteAPIError struct {
	Method string
	URL    string
	Status int
	Body   string
	Err    error
}

func (e *RemoteAPIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("gateway %s %s: unreachable: %v", e.Method, e.URL, e.Err)
	}
	if e.Body == "" {
		return fmt.Sprintf("gateway %s %s: status %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("gateway %s %s: status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

func (e *RemoteAPIError) Unwrap() error {
	return e.Err
}

// Unreachable reports whether the call never got an HTTP response.
func (e *RemoteAPIError) Unreachable() bool {
	return e.Status == 0
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *RemoteAPIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsNotFound reports whether the gateway confirmed the resource does not exist.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// IsUnauthorized reports whether the gateway rejected the credentials.
func IsUnauthorized(err error) bool {
	s := StatusOf(err)
	return s == http.StatusUnauthorized || s == http.StatusForbidden
}
