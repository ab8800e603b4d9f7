package engine

import (
	"context"

	"github.com/nao1215/pharmacrawl/internal/model"
	"github.com/nao1215/pharmacrawl/internal/workflow"
)

// Output field names read by the core.
const (
	// FieldUniqueLinks holds the deduplicated target URLs of a discovery run.
	FieldUniqueLinks = "unique_links"

	// FieldDataExtractor holds the structured record of an extraction run.
	FieldDataExtractor = "data_extractor"
)

// Output is the engine result: named node outputs of the workflow.
type Output map[string]any

// Field returns the named field and whether it was present.
func (o Output) Field(name string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o[name]
	return v, ok
}

// Engine is the extraction engine capability the core depends on.
type Engine interface {
	// Discover runs a discovery workflow.
	Discover(ctx context.Context, wf workflow.Definition, creds model.Credentials) (Output, error)

	// Extract runs a per-target workflow with the given parameters.
	Extract(ctx context.Context, wf workflow.Definition, creds model.Credentials, params model.Params) (Output, error)
}
