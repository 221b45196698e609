package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnavailable wraps transport failures reaching the backend
	ErrUnavailable = errors.New("unable to connect to server")
	// ErrInvalidResponse is returned when a response body cannot be decoded
	ErrInvalidResponse = errors.New("server returned invalid response")
	// ErrSessionExpired is returned when a 401 could not be cured by a token refresh
	ErrSessionExpired = errors.New("session expired, please login again")
)

// APIError is a non-2xx response from the backend
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// errorBody covers the shapes the backend uses for failures. FastAPI puts
// a string or a list of validation errors under "detail".
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

type validationDetail struct {
	Msg string `json:"msg"`
}

// extractMessage picks detail, then message, then error
func extractMessage(body []byte) string {
	const fallback = "request failed"

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return fallback
	}

	if len(eb.Detail) > 0 && string(eb.Detail) != "null" {
		var s string
		if err := json.Unmarshal(eb.Detail, &s); err == nil && s != "" {
			return s
		}
		var details []validationDetail
		if err := json.Unmarshal(eb.Detail, &details); err == nil && len(details) > 0 {
			msgs := make([]string, 0, len(details))
			for _, d := range details {
				if d.Msg != "" {
					msgs = append(msgs, d.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	if eb.Message != "" {
		return eb.Message
	}
	if eb.Error != "" {
		return eb.Error
	}
	return fallback
}
