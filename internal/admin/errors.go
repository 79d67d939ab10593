package admin

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is an unexpected response from the Keycloak admin API.
type APIError struct {
	// Op is the failed operation, e.g. "create user".
	Op string

	// StatusCode is the HTTP status Keycloak answered with.
	StatusCode int

	// Message is the error body Keycloak returned, if any.
	Message string
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("keycloak admin API: %s failed with status %d", e.Op, e.StatusCode)
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	return msg
}

// IsAPIError checks if an error is an APIError using error unwrapping.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// IsConflict reports whether an error is a 409 from the admin API,
// meaning the resource already exists.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}
