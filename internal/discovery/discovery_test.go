package discovery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/nao1215/pharmacrawl/internal/engine"
	"github.com/nao1215/pharmacrawl/internal/model"
	"github.com/nao1215/pharmacrawl/internal/workflow"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func scripted(out engine.Output, err error) *engine.MockEngine {
	return &engine.MockEngine{
		DiscoverFunc: func(context.Context, workflow.Definition, model.Credentials) (engine.Output, error) {
			return out, err
		},
	}
}

// TestRunnerDiscover tests reading unique_links from engine output.
func TestRunnerDiscover(t *testing.T) {
	t.Parallel()

	t.Run("passes links through unchanged", func(t *testing.T) {
		t.Parallel()

		// Duplicates, odd spacing and ordering are the workflow's business.
		links := []string{"https://b.com", " https://a.com", "https://b.com", ""}
		r := NewRunner(&engine.MockEngine{DiscoverFunc: engine.StaticLinks(links...)}, WithLogger(discardLogger()))

		got, err := r.Discover(context.Background(), workflow.Definition{Name: "discovery"}, model.Credentials{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(got, links) {
			t.Errorf("expected %v, got %v", links, got)
		}
	})

	t.Run("accepts []string", func(t *testing.T) {
		t.Parallel()

		r := NewRunner(scripted(engine.Output{engine.FieldUniqueLinks: []string{"a.com"}}, nil), WithLogger(discardLogger()))
		got, err := r.Discover(context.Background(), workflow.Definition{}, model.Credentials{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0] != "a.com" {
			t.Errorf("unexpected links %v", got)
		}
	})

	t.Run("empty list is not an error", func(t *testing.T) {
		t.Parallel()

		r := NewRunner(scripted(engine.Output{engine.FieldUniqueLinks: []any{}}, nil), WithLogger(discardLogger()))
		got, err := r.Discover(context.Background(), workflow.Definition{}, model.Credentials{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no links, got %v", got)
		}
	})

	engineErr := errors.New("engine down")
	failures := []struct {
		name  string
		out   engine.Output
		err   error
		cause error
	}{
		{name: "engine error", err: engineErr, cause: engineErr},
		{name: "missing field", out: engine.Output{"other": 1}, cause: ErrMissingLinks},
		{name: "null field", out: engine.Output{engine.FieldUniqueLinks: nil}, cause: ErrMissingLinks},
		{name: "not a list", out: engine.Output{engine.FieldUniqueLinks: "a.com"}, cause: ErrInvalidLinks},
		{name: "non-string element", out: engine.Output{engine.FieldUniqueLinks: []any{"a.com", 3}}, cause: ErrInvalidLinks},
	}

	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := NewRunner(scripted(tt.out, tt.err), WithLogger(discardLogger()))
			_, err := r.Discover(context.Background(), workflow.Definition{}, model.Credentials{})

			if !errors.Is(err, model.ErrDiscovery) {
				t.Errorf("expected discovery failure, got %v", err)
			}
			if !errors.Is(err, tt.cause) {
				t.Errorf("expected cause %v, got %v", tt.cause, err)
			}
		})
	}
}
