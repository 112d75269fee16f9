package orclient

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name        string
		err         *APIError
		expectedMsg string
		isRetryable bool
		isRateLimit bool
		isAuthError bool
	}{
		{
			name: "basic error",
			err: &APIError{
				StatusCode: 400,
				Message:    "Bad request",
			},
			expectedMsg: "API error 400: Bad request",
		},
		{
			name: "error with code",
			err: &APIError{
				StatusCode: 403,
				Message:    "Forbidden",
				Code:       "insufficient_permissions",
			},
			expectedMsg: "API error 403 (insufficient_permissions): Forbidden",
		},
		{
			name: "server error",
			err: &APIError{
				StatusCode: 500,
				Message:    "Internal server error",
			},
			expectedMsg: "API error 500: Internal server error",
			isRetryable: true,
		},
		{
			name: "rate limit error",
			err: &APIError{
				StatusCode: 429,
				Message:    "Too many requests",
				Code:       "rate_limit_exceeded",
			},
			expectedMsg: "API error 429 (rate_limit_exceeded): Too many requests",
			isRetryable: true,
			isRateLimit: true,
		},
		{
			name: "auth error",
			err: &APIError{
				StatusCode: 401,
				Message:    "Invalid API key",
				Code:       "invalid_api_key",
			},
			expectedMsg: "API error 401 (invalid_api_key): Invalid API key",
			isAuthError: true,
		},
		{
			name: "retryable code on 4xx",
			err: &APIError{
				StatusCode: 408,
				Message:    "slow",
				Code:       "timeout",
			},
			expectedMsg: "API error 408 (timeout): slow",
			isRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expectedMsg {
				t.Errorf("Error() = %v, want %v", got, tt.expectedMsg)
			}
			if got := tt.err.IsRetryable(); got != tt.isRetryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.isRetryable)
			}
			if got := tt.err.IsRateLimit(); got != tt.isRateLimit {
				t.Errorf("IsRateLimit() = %v, want %v", got, tt.isRateLimit)
			}
			if got := tt.err.IsAuthError(); got != tt.isAuthError {
				t.Errorf("IsAuthError() = %v, want %v", got, tt.isAuthError)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("nope"), false},
		{"server error", &APIError{StatusCode: 502}, true},
		{"wrapped server error", fmt.Errorf("call: %w", &APIError{StatusCode: 503}), true},
		{"client error", &APIError{StatusCode: 400}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetRetryDelay(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		attempt int
		base    time.Duration
		want    time.Duration
	}{
		{"first attempt", errors.New("x"), 1, time.Second, time.Second},
		{"second attempt", errors.New("x"), 2, time.Second, 2 * time.Second},
		{"third attempt", errors.New("x"), 3, time.Second, 4 * time.Second},
		{"capped", errors.New("x"), 10, time.Second, time.Minute},
		{"zero base", nil, 1, 0, time.Second},
		{
			name:    "retry after wins",
			err:     &APIError{StatusCode: 429, RetryAfter: 5 * time.Second},
			attempt: 1,
			base:    time.Millisecond,
			want:    5 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetRetryDelay(tt.err, tt.attempt, tt.base); got != tt.want {
				t.Errorf("GetRetryDelay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("7"); got != 7*time.Second {
		t.Errorf("parseRetryAfter(7) = %v", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("parseRetryAfter(\"\") = %v", got)
	}
	if got := parseRetryAfter("garbage"); got != 0 {
		t.Errorf("parseRetryAfter(garbage) = %v", got)
	}
}
