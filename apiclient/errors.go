package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized means the API rejected the credential. The bound session has
	// already been logged out when it is returned.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoSession is returned by protected calls on a client with no session bound.
	ErrNoSession = errors.New("no session bound")
	// ErrInvalidResponse is returned when a success body cannot be decoded.
	ErrInvalidResponse = errors.New("invalid API response")
)

// APIError is a non-2xx response other than 401.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, http.StatusText(e.Status))
}

// Temporary reports whether a retry could succeed.
func (e *APIError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// Message returns the message to show a user: the API's own message when it sent one,
// fallback otherwise.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

type errorEnvelope struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
