package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/pharmacrawl/internal/engine"
	"github.com/nao1215/pharmacrawl/internal/model"
	"github.com/nao1215/pharmacrawl/internal/workflow"
)

// Discovery output errors.
var (
	// ErrMissingLinks is returned when the engine output has no unique_links field.
	ErrMissingLinks = errors.New("engine output has no unique_links field")

	// ErrInvalidLinks is returned when unique_links is not a list of strings.
	ErrInvalidLinks = errors.New("unique_links is not a list of strings")
)

// Runner executes discovery workflows.
type Runner struct {
	engine engine.Engine
	logger *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a Runner backed by the given engine.
func NewRunner(e engine.Engine, opts ...Option) *Runner {
	r := &Runner{engine: e}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Discover runs wf once and returns the discovered target URLs in the order
// the engine produced them. Every failure is a *model.DiscoveryError.
func (r *Runner) Discover(ctx context.Context, wf workflow.Definition, creds model.Credentials) ([]string, error) {
	r.logger.Info("running discovery workflow", "workflow", wf.Name)

	out, err := r.engine.Discover(ctx, wf, creds)
	if err != nil {
		return nil, &model.DiscoveryError{Err: err}
	}

	raw, ok := out.Field(engine.FieldUniqueLinks)
	if !ok || raw == nil {
		return nil, &model.DiscoveryError{Err: ErrMissingLinks}
	}

	links, err := toStrings(raw)
	if err != nil {
		return nil, &model.DiscoveryError{Err: err}
	}

	r.logger.Info("discovery complete", "targets", len(links))
	return links, nil
}

// toStrings converts a decoded JSON list to strings without reordering.
func toStrings(raw any) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out, nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: element %d is %T", ErrInvalidLinks, i, item)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrInvalidLinks, raw)
	}
}
