package model

import (
	"errors"
	"fmt"
)

// Run error kinds.
// Every error that ends a run unwraps to exactly one of these sentinels, so
// callers can classify a failure with errors.Is without knowing which
// component produced it.
var (
	// ErrConfigLoad means a workflow definition could not be read.
	ErrConfigLoad = errors.New("config load failure")

	// ErrDiscovery means the engine failed during discovery or returned
	// output without the expected field.
	ErrDiscovery = errors.New("discovery failure")

	// ErrExtraction means the engine failed while extracting one target or
	// returned output without the expected field.
	ErrExtraction = errors.New("extraction failure")

	// ErrSink means the finalized result set could not be persisted.
	ErrSink = errors.New("sink failure")
)

// ConfigLoadError reports a workflow definition that could not be loaded.
type ConfigLoadError struct {
	// Path is the location that failed to load.
	Path string
	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *ConfigLoadError) Error() string {
	return fmt.Sprintf("config load failure: %s: %v", e.Path, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *ConfigLoadError) Unwrap() []error {
	return []error{ErrConfigLoad, e.Err}
}

// DiscoveryError reports a failed discovery phase.
type DiscoveryError struct {
	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery failure: %v", e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *DiscoveryError) Unwrap() []error {
	return []error{ErrDiscovery, e.Err}
}

// ExtractionError reports a failed extraction for a single target.
type ExtractionError struct {
	// URL is the target whose extraction failed.
	URL string
	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failure for %s: %v", e.URL, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *ExtractionError) Unwrap() []error {
	return []error{ErrExtraction, e.Err}
}

// SinkError reports a result set that could not be persisted.
type SinkError struct {
	// Sink names the sink that failed.
	Sink string
	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *SinkError) Error() string {
	return fmt.Sprintf("sink failure (%s): %v", e.Sink, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *SinkError) Unwrap() []error {
	return []error{ErrSink, e.Err}
}

// ErrorKind returns the run error kind name for err ("config_load",
// "discovery", "extraction", "sink"), "cancelled" for context errors, or
// "unknown". It returns "" for a nil error.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfigLoad):
		return "config_load"
	case errors.Is(err, ErrDiscovery):
		return "discovery"
	case errors.Is(err, ErrExtraction):
		return "extraction"
	case errors.Is(err, ErrSink):
		return "sink"
	case isContextErr(err):
		return "cancelled"
	default:
		return "unknown"
	}
}
