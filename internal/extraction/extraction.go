package extraction

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/pharmacrawl/internal/engine"
	"github.com/nao1215/pharmacrawl/internal/model"
	"github.com/nao1215/pharmacrawl/internal/workflow"
)

// ErrMissingRecord is returned when the engine output has no data_extractor
// value, or the value is null.
var ErrMissingRecord = errors.New("engine output has no data_extractor record")

// Extractor executes the extraction workflow for single targets.
type Extractor struct {
	engine  engine.Engine
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTimeout bounds each extraction call. Zero means no bound beyond the
// caller's context.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor creates an Extractor backed by the given engine.
func NewExtractor(e engine.Engine, opts ...Option) *Extractor {
	x := &Extractor{engine: e}
	for _, opt := range opts {
		opt(x)
	}
	if x.logger == nil {
		x.logger = slog.Default()
	}
	return x
}

// Extract runs wf for url. The returned result has URL and Data set; the
// caller assigns Index. Every failure is a *model.ExtractionError for url.
func (x *Extractor) Extract(ctx context.Context, wf workflow.Definition, creds model.Credentials, url string) (model.ExtractionResult, error) {
	if x.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.timeout)
		defer cancel()
	}

	x.logger.Debug("extracting target", "url", url)

	out, err := x.engine.Extract(ctx, wf, creds, model.NewTargetParams(url))
	if err != nil {
		return model.ExtractionResult{}, &model.ExtractionError{URL: url, Err: err}
	}

	rec, ok := out.Field(engine.FieldDataExtractor)
	if !ok || rec == nil {
		return model.ExtractionResult{}, &model.ExtractionError{URL: url, Err: ErrMissingRecord}
	}

	return model.ExtractionResult{URL: url, Data: rec}, nil
}
