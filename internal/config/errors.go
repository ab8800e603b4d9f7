package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and can be matched with
// errors.Is().
var (
	// ErrNoDiscoveryWorkflow is returned when the discovery workflow path is empty.
	ErrNoDiscoveryWorkflow = errors.New("no discovery workflow specified")

	// ErrNoExtractionWorkflow is returned when the extraction workflow path is empty.
	ErrNoExtractionWorkflow = errors.New("no extraction workflow specified")

	// ErrNoOutput is returned when the output path is empty.
	// Use "-" to write the artifact to stdout.
	ErrNoOutput = errors.New("no output path specified: use a file path or - for stdout")

	// ErrInvalidRateLimit is returned when the rate limit is negative.
	// Use 0 to disable pacing.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidExtractionTimeout is returned when the extraction timeout is negative.
	// Use 0 for no per-target timeout.
	ErrInvalidExtractionTimeout = errors.New("invalid extraction timeout: must be non-negative")

	// ErrInvalidConcurrency is returned when concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidEngineTimeout is returned when the engine timeout is not positive.
	ErrInvalidEngineTimeout = errors.New("invalid engine timeout: must be positive")

	// ErrInvalidEngineEndpoint is returned when the engine endpoint is not an
	// absolute http(s) URL.
	ErrInvalidEngineEndpoint = errors.New("invalid engine endpoint: expected absolute http(s) URL")

	// ErrUnknownSummaryFormat is returned for an unsupported summary format.
	ErrUnknownSummaryFormat = errors.New("unknown summary format: use text, markdown, json or none")

	// ErrNoDBDir is returned when history is enabled without a database directory.
	ErrNoDBDir = errors.New("history is enabled but no database directory is set")

	// ErrMissingCredential is returned when a required API key is not set.
	ErrMissingCredential = errors.New("missing credential")
)
