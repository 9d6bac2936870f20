package transport

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized reports a 401/403 response after a token refresh attempt.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound reports a 404 response.
	ErrNotFound = errors.New("not found")
)

const maxErrorBody = 2048

// APIError describes a non-2xx response from a REST endpoint.
type APIError struct {
	StatusCode int
	Body       string
	Endpoint   string
}

func newAPIError(status int, endpoint string, body []byte) *APIError {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return &APIError{StatusCode: status, Body: text, Endpoint: endpoint}
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Is maps status codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// Retryable reports whether the status is worth another attempt.
func (e *APIError) Retryable() bool {
	return isRetryableStatus(e.StatusCode)
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
