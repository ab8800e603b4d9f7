package engine

import (
	"context"
	"sync"

	"github.com/nao1215/pharmacrawl/internal/model"
	"github.com/nao1215/pharmacrawl/internal/workflow"
)

// MockEngine is a scripted Engine for testing.
// It records every call and delegates to the configured functions.
type MockEngine struct {
	// DiscoverFunc scripts Discover. If nil, Discover returns ErrNotScripted.
	DiscoverFunc func(ctx context.Context, wf workflow.Definition, creds model.Credentials) (Output, error)

	// ExtractFunc scripts Extract. If nil, Extract returns ErrNotScripted.
	ExtractFunc func(ctx context.Context, wf workflow.Definition, creds model.Credentials, params model.Params) (Output, error)

	mu            sync.Mutex
	discoverCalls int
	extractedURLs []string
}

// Discover implements Engine.
func (m *MockEngine) Discover(ctx context.Context, wf workflow.Definition, creds model.Credentials) (Output, error) {
	m.mu.Lock()
	m.discoverCalls++
	m.mu.Unlock()

	if m.DiscoverFunc == nil {
		return nil, ErrNotScripted
	}
	return m.DiscoverFunc(ctx, wf, creds)
}

// Extract implements Engine.
func (m *MockEngine) Extract(ctx context.Context, wf workflow.Definition, creds model.Credentials, params model.Params) (Output, error) {
	m.mu.Lock()
	m.extractedURLs = append(m.extractedURLs, params[model.ParamURL])
	m.mu.Unlock()

	if m.ExtractFunc == nil {
		return nil, ErrNotScripted
	}
	return m.ExtractFunc(ctx, wf, creds, params)
}

// DiscoverCalls returns how many times Discover was called.
func (m *MockEngine) DiscoverCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.discoverCalls
}

// ExtractedURLs returns the url parameter of every Extract call, in call order.
func (m *MockEngine) ExtractedURLs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.extractedURLs))
	copy(out, m.extractedURLs)
	return out
}

// StaticLinks returns a DiscoverFunc that always yields the given links.
func StaticLinks(links ...string) func(context.Context, workflow.Definition, model.Credentials) (Output, error) {
	return func(context.Context, workflow.Definition, model.Credentials) (Output, error) {
		out := make([]any, len(links))
		for i, l := range links {
			out[i] = l
		}
		return Output{FieldUniqueLinks: out}, nil
	}
}

// RecordsByURL returns an ExtractFunc that yields records[url] under
// data_extractor, or an Output without the field for unknown URLs.
func RecordsByURL(records map[string]any) func(context.Context, workflow.Definition, model.Credentials, model.Params) (Output, error) {
	return func(_ context.Context, _ workflow.Definition, _ model.Credentials, params model.Params) (Output, error) {
		rec, ok := records[params[model.ParamURL]]
		if !ok {
			return Output{}, nil
		}
		return Output{FieldDataExtractor: rec}, nil
	}
}
