package ollama

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// RetryConfig configures the retry behavior for LLM calls.
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for LLM API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// transportError wraps a network-level failure (connection refused, reset,
// client timeout). Always retryable.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return fmt.Sprintf("ollama request failed: %v", e.err) }
func (e *transportError) Unwrap() error { return e.err }

// statusError is a non-2xx HTTP response from the endpoint.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ollama error: status %d, body: %s", e.code, e.body)
}

// retryableError reports whether err is transient and should trigger a retry.
// Network failures and rate-limit / server-side statuses qualify; schema and
// client errors do not.
func retryableError(err error) bool {
	if err == nil {
		return false
	}

	var te *transportError
	if errors.As(err, &te) {
		return true
	}

	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.code == http.StatusTooManyRequests:
			return true
		case se.code >= 500:
			return true
		}
	}

	return false
}
