package engine

import (
	"errors"
	"fmt"
)

// Engine client errors.
var (
	// ErrInvalidEndpoint is returned when the engine endpoint is not an
	// absolute http or https URL.
	ErrInvalidEndpoint = errors.New("invalid engine endpoint: expected absolute http(s) URL")

	// ErrInvalidProxyAddress is returned when the proxy address format is invalid.
	// Expected format is "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrResponseTooLarge is returned when the engine response exceeds the body limit.
	ErrResponseTooLarge = errors.New("engine response exceeds size limit")

	// ErrInvalidResponse is returned when the engine response is not a JSON object.
	ErrInvalidResponse = errors.New("engine response is not a JSON object")

	// ErrNotScripted is returned by MockEngine when no behavior was configured.
	ErrNotScripted = errors.New("mock engine: no behavior scripted")
)

// StatusError is returned when the engine answers with a non-2xx status.
type StatusError struct {
	// StatusCode is the HTTP status returned by the engine.
	StatusCode int
	// Body is the beginning of the response body, for diagnostics.
	Body string
}

// Error implements error.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("engine returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("engine returned status %d: %s", e.StatusCode, e.Body)
}
