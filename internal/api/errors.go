package api

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthorized is returned when the API rejects the bearer token.
	ErrUnauthorized = errors.New("api: unauthorized")
	// ErrLocked is returned when the API refuses a write because the budget is locked.
	ErrLocked = errors.New("api: budget locked")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("api: not found")
)

// StatusError describes any other non-2xx response.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("api: %s %s returned %d", e.Method, e.Path, e.Status)
}

// ValidationError carries row-level messages from a rejected write.
type ValidationError struct {
	Status  int
	Message string
	Errors  []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "api: validation failed: " + e.Message
	}
	return fmt.Sprintf("api: validation failed: %s (%s)", e.Message, strings.Join(e.Errors, "; "))
}

// Message extracts the user-facing text from err. Unknown errors yield fallback.
func Message(err error, fallback string) string {
	var verr *ValidationError
	if errors.As(err, &verr) && verr.Message != "" {
		return verr.Message
	}
	var serr *StatusError
	if errors.As(err, &serr) && serr.Message != "" {
		return serr.Message
	}
	return fallback
}
