package pipeline

import "errors"

var (
	// ErrNoWorkflow is returned when a run is started without a workflow source.
	ErrNoWorkflow = errors.New("no workflow source configured")

	// ErrCancelled wraps the context error of a cancelled run.
	ErrCancelled = errors.New("run cancelled")
)
