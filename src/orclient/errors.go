package orclient

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var (
	// ErrNoAPIKey indicates the API key is missing
	ErrNoAPIKey = errors.New("API key is required")

	// ErrEmptyResponse indicates the API returned no choices
	ErrEmptyResponse = errors.New("empty response from API")

	// ErrModelNotFound indicates the model is not listed by the API
	ErrModelNotFound = errors.New("model not found")
)

// errorResponse matches the OpenRouter error envelope:
// {"error":{"message":"...","code":...}}
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Param   string `json:"param"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// APIError represents an error response from the OpenRouter API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	Code       string
	Param      string
	RetryAfter time.Duration
	RequestID  string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error is retryable.
func (e *APIError) IsRetryable() bool {
	if e.StatusCode >= 500 && e.StatusCode < 600 {
		return true
	}
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	switch e.Code {
	case "timeout", "connection_error", "server_error":
		return true
	}
	return false
}

// IsRateLimit returns true if this is a rate limit error.
func (e *APIError) IsRateLimit() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Code == "rate_limit_exceeded"
}

// IsAuthError returns true if this is an authentication error.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.Code == "invalid_api_key"
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	return false
}

// GetRetryDelay returns the delay before the given attempt (1-based). Rate
// limit errors carrying Retry-After win over the exponential backoff.
func GetRetryDelay(err error, attempt int, base time.Duration) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.IsRateLimit() && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter
	}
	if base <= 0 {
		base = time.Second
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := base * time.Duration(1<<uint(attempt-1))
	if maxDelay := time.Minute; delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func codeString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		return strconv.Itoa(int(c))
	default:
		return fmt.Sprint(c)
	}
}
