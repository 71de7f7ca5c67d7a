package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrBackendUnavailable is a transport failure: connection refused, DNS, timeout
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrRequestFailed is any non-2xx response
	ErrRequestFailed = errors.New("request failed")
	// ErrSessionExpired means the backend rejected the bearer token
	ErrSessionExpired = errors.New("session expired")
	// ErrNotFound is a 404; it also matches ErrRequestFailed
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest is returned before sending when a payload fails validation
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidCredentials is a rejected login
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// StatusError is a non-2xx response from the backend
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// Is lets callers match on the sentinel errors
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrSessionExpired:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrRequestFailed:
		return e.Status != http.StatusUnauthorized
	}
	return false
}

// Message returns text suitable for a status line
func Message(err error) string {
	var se *StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	switch {
	case errors.Is(err, ErrSessionExpired):
		return "Your session has expired, please log in again"
	case errors.Is(err, ErrBackendUnavailable):
		return "Cannot reach the server"
	case errors.Is(err, ErrNotFound):
		return "Not found"
	}
	return err.Error()
}
