package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// ErrReauthenticationRequired means the session was cleared because the
// backend rejected it and could not be refreshed. Callers route to login.
var ErrReauthenticationRequired = errors.New("reauthentication required")

// APIError is a non-2xx backend response.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

func newAPIError(statusCode int, body []byte) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Message:    extractMessage(body),
		Body:       body,
	}
}

// extractMessage pulls the first human readable message out of a backend
// error payload: detail, message, error, non_field_errors, then the first
// field error list.
func extractMessage(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	parsed := gjson.ParseBytes(body)
	if parsed.Type == gjson.String {
		return parsed.String()
	}
	if parsed.IsArray() {
		return parsed.Get("0").String()
	}

	for _, path := range []string{"detail", "message", "error", "non_field_errors.0"} {
		if value := parsed.Get(path); value.Exists() && value.Type == gjson.String && value.String() != "" {
			return value.String()
		}
	}

	var message string
	parsed.ForEach(func(key, value gjson.Result) bool {
		switch {
		case value.IsArray() && value.Get("0").Type == gjson.String:
			message = value.Get("0").String()
		case value.Type == gjson.String && value.String() != "":
			message = value.String()
		default:
			return true
		}
		return false
	})
	return message
}

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrReauthenticationRequired) || statusOf(err) == http.StatusUnauthorized
}

// IsTransient reports failures that say nothing definite about the session:
// transport errors, timeouts and 5xx responses.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrReauthenticationRequired) {
		return false
	}
	status := statusOf(err)
	return status == 0 || status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
}
