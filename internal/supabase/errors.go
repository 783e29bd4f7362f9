package supabase

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx answer from the remote table.
type APIError struct {
	Type       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote table request failed [%s] with status %d", e.Type, e.StatusCode)
	}
	return fmt.Sprintf("remote table request failed [%s] with status %d: %s", e.Type, e.StatusCode, e.Body)
}

// IsNotFound reports whether the target row or table does not exist.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

func newAPIError(statusCode int, body []byte) *APIError {
	return &APIError{
		Type:       categorizeHTTPError(statusCode),
		StatusCode: statusCode,
		Body:       truncate(string(body), 500),
	}
}

// IsNotFound unwraps err looking for a not-found APIError.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsNotFound()
}

func categorizeHTTPError(statusCode int) string {
	switch {
	case statusCode == 401 || statusCode == 403:
		return "auth"
	case statusCode == 404:
		return "not_found"
	case statusCode == 409:
		return "conflict"
	case statusCode == 429:
		return "rate_limit"
	case statusCode >= 400 && statusCode < 500:
		return "client"
	case statusCode >= 500:
		return "server"
	default:
		return "unknown"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
