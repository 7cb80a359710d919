package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingAuthentication is returned by New when no Authenticator is given.
var ErrMissingAuthentication = errors.New("authentication is required")

// ConfigurationError reports a missing or malformed construction option.
type ConfigurationError struct {
	Option string // recognised option key, empty when not tied to one
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Option == "" {
		return fmt.Sprintf("client configuration: %v", e.Err)
	}
	return fmt.Sprintf("client configuration: %s: %v", e.Option, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err is, or wraps, a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// TransportError reports an exchange the transport could not complete: a
// network failure (Err set, StatusCode zero) or an error response
// (StatusCode >= 400, Response set with its body buffered in memory).
type TransportError struct {
	Request    *http.Request
	Response   *http.Response
	StatusCode int
	// Message is the error formatter's rendering of the failed exchange.
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	target := "request"
	if e.Request != nil && e.Request.URL != nil {
		target = e.Request.Method + " " + e.Request.URL.String()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: HTTP %d %s", target, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: %v", target, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatusCode returns the response status, or zero for network failures.
func (e *TransportError) HTTPStatusCode() int { return e.StatusCode }

// StatusCode extracts the HTTP status carried by err, or zero when err does
// not wrap a *TransportError with a response.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}

// IsRetryable reports whether err is worth retrying: network failures and
// 408, 429 and most 5xx responses are, cancellation and other 4xx are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return retryable(err)
}
