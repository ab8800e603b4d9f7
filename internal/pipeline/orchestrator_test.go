package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/pharmacrawl/internal/discovery"
	"github.com/nao1215/pharmacrawl/internal/engine"
	"github.com/nao1215/pharmacrawl/internal/extraction"
	"github.com/nao1215/pharmacrawl/internal/model"
	"github.com/nao1215/pharmacrawl/internal/ratelimit"
	"github.com/nao1215/pharmacrawl/internal/sink"
	"github.com/nao1215/pharmacrawl/internal/workflow"
)

var testCreds = model.NewCredentials("jina_fake", "sk-or-v1-fake")

// recordingSink is a test helper that records every Write call.
type recordingSink struct {
	mu      sync.Mutex
	calls   int
	records []any
	err     error
}

func (s *recordingSink) Write(_ context.Context, rs *model.ResultSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.records = rs.Records()
	return s.err
}

func (s *recordingSink) Name() string {
	return "recording"
}

func (s *recordingSink) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testInput() Input {
	return Input{
		DiscoveryWorkflow:  workflow.Inline{Name: "discovery", Text: "nodes: {unique_links: {}}"},
		ExtractionWorkflow: workflow.Inline{Name: "extraction", Text: "nodes: {data_extractor: {}}"},
		Credentials:        testCreds,
	}
}

// newTestOrchestrator wires the real runner and extractor over a scripted engine.
func newTestOrchestrator(m *engine.MockEngine, s sink.Sink, opts ...Option) *Orchestrator {
	base := []Option{WithLogger(discardLogger()), WithRateLimiter(ratelimit.Nop{})}
	return New(
		discovery.NewRunner(m, discovery.WithLogger(discardLogger())),
		extraction.NewExtractor(m, extraction.WithLogger(discardLogger())),
		s,
		append(base, opts...)...,
	)
}

func record(name string) map[string]any {
	return map[string]any{"name": name}
}

// failFor returns an ExtractFunc that fails for the given URLs and returns
// {name: url} for the rest.
func failFor(failing ...string) func(context.Context, workflow.Definition, model.Credentials, model.Params) (engine.Output, error) {
	return func(_ context.Context, _ workflow.Definition, _ model.Credentials, p model.Params) (engine.Output, error) {
		url := p[model.ParamURL]
		for _, f := range failing {
			if url == f {
				return nil, errors.New("scrape failed")
			}
		}
		return engine.Output{engine.FieldDataExtractor: record(url)}, nil
	}
}

// TestNew tests constructor defaults.
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		o := New(nil, nil, &recordingSink{})
		if o.policy != model.FailFast {
			t.Errorf("expected fail-fast by default, got %v", o.policy)
		}
		if o.concurrency != 1 {
			t.Errorf("expected concurrency 1, got %d", o.concurrency)
		}
		f, ok := o.limiter.(*ratelimit.Fixed)
		if !ok || f.Interval() != ratelimit.DefaultInterval {
			t.Errorf("expected fixed limiter at the default interval, got %#v", o.limiter)
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		if o := New(nil, nil, &recordingSink{}, WithConcurrency(0)); o.concurrency != 1 {
			t.Errorf("expected concurrency 1, got %d", o.concurrency)
		}
	})

	t.Run("concurrent runs share one token bucket", func(t *testing.T) {
		t.Parallel()

		o := New(nil, nil, &recordingSink{},
			WithConcurrency(3),
			WithRateLimiter(ratelimit.NewFixed(50*time.Millisecond)),
		)
		s, ok := o.limiter.(*ratelimit.Shared)
		if !ok {
			t.Fatalf("expected *ratelimit.Shared, got %T", o.limiter)
		}
		if s.Interval() != 50*time.Millisecond {
			t.Errorf("expected interval to carry over, got %v", s.Interval())
		}
	})
}

// TestRunAllTargetsSucceed covers a run where every extraction succeeds.
func TestRunAllTargetsSucceed(t *testing.T) {
	t.Parallel()

	m := &engine.MockEngine{
		DiscoverFunc: engine.StaticLinks("a.com", "b.com", "c.com"),
		ExtractFunc: engine.RecordsByURL(map[string]any{
			"a.com": record("A"),
			"b.com": record("B"),
			"c.com": record("C"),
		}),
	}
	path := filepath.Join(t.TempDir(), "pharmacies.json")

	report, err := newTestOrchestrator(m, sink.NewJSONFile(path)).Run(context.Background(), testInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.State != model.StateDone {
		t.Errorf("expected done, got %v", report.State)
	}
	if report.Artifact != path {
		t.Errorf("expected artifact %q, got %q", path, report.Artifact)
	}
	if report.SucceededCount() != 3 {
		t.Errorf("expected 3 successes, got %d", report.SucceededCount())
	}

	data, err := os.ReadFile(path) //nolint:gosec // test path
	if err != nil {
		t.Fatal(err)
	}
	want := "[\n  {\n    \"name\": \"A\"\n  },\n  {\n    \"name\": \"B\"\n  },\n  {\n    \"name\": \"C\"\n  }\n]\n"
	if string(data) != want {
		t.Errorf("unexpected artifact:\n%s", data)
	}
}

// TestRunFailFast covers abort on the first extraction failure.
func TestRunFailFast(t *testing.T) {
	t.Parallel()

	t.Run("failure on the last target writes nothing", func(t *testing.T) {
		t.Parallel()

		m := &engine.MockEngine{
			DiscoverFunc: engine.StaticLinks("a.com", "b.com"),
			ExtractFunc:  failFor("b.com"),
		}
		path := filepath.Join(t.TempDir(), "pharmacies.json")

		report, err := newTestOrchestrator(m, sink.NewJSONFile(path)).Run(context.Background(), testInput())

		var ee *model.ExtractionError
		if !errors.As(err, &ee) || ee.URL != "b.com" {
			t.Fatalf("expected extraction failure for b.com, got %v", err)
		}
		if report.State != model.StateFailed || report.FailedURL != "b.com" {
			t.Errorf("expected failed report naming b.com, got %v %q", report.State, report.FailedURL)
		}
		if report.ErrorKind != "extraction" {
			t.Errorf("expected kind extraction, got %q", report.ErrorKind)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("expected no artifact, stat returned %v", err)
		}
	})

	t.Run("remaining targets are never attempted", func(t *testing.T) {
		t.Parallel()

		m := &engine.MockEngine{
			DiscoverFunc: engine.StaticLinks("a.com", "b.com", "c.com", "d.com"),
			ExtractFunc:  failFor("b.com"),
		}
		s := &recordingSink{}

		report, err := newTestOrchestrator(m, s).Run(context.Background(), testInput())
		if !errors.Is(err, model.ErrExtraction) {
			t.Fatalf("expected extraction failure, got %v", err)
		}

		if got := m.ExtractedURLs(); !reflect.DeepEqual(got, []string{"a.com", "b.com"}) {
			t.Errorf("expected only a.com and b.com attempted, got %v", got)
		}
		if s.Calls() != 0 {
			t.Errorf("expected no sink write, got %d", s.Calls())
		}

		statuses := make([]string, len(report.Outcomes))
		for i, o := range report.Outcomes {
			statuses[i] = o.Status
		}
		want := []string{model.TargetSucceeded, model.TargetFailed, model.TargetNotAttempted, model.TargetNotAttempted}
		if !reflect.DeepEqual(statuses, want) {
			t.Errorf("expected %v, got %v", want, statuses)
		}
		if report.Results.Len() != 1 {
			t.Errorf("expected the accumulated a.com result, got %d", report.Results.Len())
		}
	})
}

// TestRunDiscoveryFailure covers runs that never reach extraction.
func TestRunDiscoveryFailure(t *testing.T) {
	t.Parallel()

	t.Run("missing unique_links", func(t *testing.T) {
		t.Parallel()

		m := &engine.MockEngine{
			DiscoverFunc: func(context.Context, workflow.Definition, model.Credentials) (engine.Output, error) {
				return engine.Output{"links": []any{"a.com"}}, nil
			},
			ExtractFunc: failFor(),
		}
		s := &recordingSink{}

		report, err := newTestOrchestrator(m, s).Run(context.Background(), testInput())
		if !errors.Is(err, model.ErrDiscovery) {
			t.Fatalf("expected discovery failure, got %v", err)
		}
		if len(m.ExtractedURLs()) != 0 {
			t.Errorf("extractor must not be invoked, got %v", m.ExtractedURLs())
		}
		if s.Calls() != 0 {
			t.Errorf("expected no sink write, got %d", s.Calls())
		}
		if report.ErrorKind != "discovery" {
			t.Errorf("expected kind discovery, got %q", report.ErrorKind)
		}
	})

	t.Run("unreadable discovery workflow", func(t *testing.T) {
		t.Parallel()

		m := &engine.MockEngine{DiscoverFunc: engine.StaticLinks("a.com")}
		in := testInput()
		in.DiscoveryWorkflow = workflow.NewFile("discovery", filepath.Join(t.TempDir(), "missing.yaml"))

		s := &recordingSink{}
		report, err := newTestOrchestrator(m, s).Run(context.Background(), in)
		if !errors.Is(err, model.ErrDiscovery) {
			t.Errorf("expected discovery failure, got %v", err)
		}
		if !errors.Is(err, model.ErrConfigLoad) {
			t.Errorf("expected config load cause, got %v", err)
		}
		var loadErr *model.ConfigLoadError
		if !errors.As(err, &loadErr) {
			t.Fatalf("expected *model.ConfigLoadError in chain, got %T", err)
		}
		if m.DiscoverCalls() != 0 {
			t.Errorf("engine must not be called, got %d calls", m.DiscoverCalls())
		}
		if s.Calls() != 0 {
			t.Errorf("expected no sink write, got %d", s.Calls())
		}
		if report.State != model.StateFailed {
			t.Errorf("expected failed, got %v", report.State)
		}
	})

	t.Run("missing workflow source", func(t *testing.T) {
		t.Parallel()

		in := testInput()
		in.DiscoveryWorkflow = nil

		_, err := newTestOrchestrator(&engine.MockEngine{}, &recordingSink{}).Run(context.Background(), in)
		if !errors.Is(err, model.ErrConfigLoad) || !errors.Is(err, ErrNoWorkflow) {
			t.Errorf("expected config load failure for missing source, got %v", err)
		}
		if !errors.Is(err, model.ErrDiscovery) {
			t.Errorf("expected discovery failure for missing source, got %v", err)
		}
	})
}

// TestRunExtractionWorkflowLoad covers loading the per-target workflow.
func TestRunExtractionWorkflowLoad(t *testing.T) {
	t.Parallel()

	t.Run("empty extraction workflow fails after discovery", func(t *testing.T) {
		t.Parallel()

		m := &engine.MockEngine{DiscoverFunc: engine.StaticLinks("a.com"), ExtractFunc: failFor()}
		in := testInput()
		in.ExtractionWorkflow = workflow.Inline{Name: "extraction"}

		_, err := newTestOrchestrator(m, &recordingSink{}).Run(context.Background(), in)
		if !errors.Is(err, model.ErrConfigLoad) {
			t.Fatalf("expected config load failure, got %v", err)
		}
		if m.DiscoverCalls() != 1 || len(m.ExtractedURLs()) != 0 {
			t.Errorf("expected discovery only, got %d discover and %v extract calls", m.DiscoverCalls(), m.ExtractedURLs())
		}
	})

	t.Run("zero targets finalizes an empty set without loading it", func(t *testing.T) {
		t.Parallel()

		m := &engine.MockEngine{DiscoverFunc: engine.StaticLinks()}
		in := testInput()
		in.ExtractionWorkflow = workflow.Inline{Name: "extraction"}
		s := &recordingSink{}

		report, err := newTestOrchestrator(m, s).Run(context.Background(), in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.Calls() != 1 || len(s.records) != 0 || s.records == nil {
			t.Errorf("expected one write of an empty set, got %d calls with %v", s.Calls(), s.records)
		}
		if report.State != model.StateDone {
			t.Errorf("expected done, got %v", report.State)
		}
	})
}

// TestRunSkipAndContinue covers the skip failure policy.
func TestRunSkipAndContinue(t *testing.T) {
	t.Parallel()

	m := &engine.MockEngine{
		DiscoverFunc: engine.StaticLinks("a.com", "b.com", "c.com"),
		ExtractFunc:  failFor("b.com"),
	}
	s := &recordingSink{}

	report, err := newTestOrchestrator(m, s, WithFailurePolicy(model.SkipAndContinue)).Run(context.Background(), testInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.Calls() != 1 {
		t.Fatalf("expected exactly one sink write, got %d", s.Calls())
	}
	want := []any{record("a.com"), record("c.com")}
	if !reflect.DeepEqual(s.records, want) {
		t.Errorf("expected %v, got %v", want, s.records)
	}
	if report.FailedCount() != 1 || report.SucceededCount() != 2 {
		t.Errorf("expected 2 succeeded and 1 failed, got %d and %d", report.SucceededCount(), report.FailedCount())
	}
	failed := report.FailedOutcomes()
	if len(failed) != 1 || failed[0].URL != "b.com" || failed[0].Error == "" {
		t.Errorf("unexpected failed outcomes %+v", failed)
	}
	if report.Policy != model.SkipAndContinue {
		t.Errorf("expected skip policy on report, got %v", report.Policy)
	}
}

// TestRunSinkFailure covers a sink that cannot persist.
func TestRunSinkFailure(t *testing.T) {
	t.Parallel()

	t.Run("typed sink error is kept", func(t *testing.T) {
		t.Parallel()

		m := &engine.MockEngine{DiscoverFunc: engine.StaticLinks("a.com"), ExtractFunc: failFor()}
		s := &recordingSink{err: &model.SinkError{Sink: "recording", Err: errors.New("disk full")}}

		report, err := newTestOrchestrator(m, s).Run(context.Background(), testInput())
		if !errors.Is(err, model.ErrSink) {
			t.Fatalf("expected sink failure, got %v", err)
		}
		if report.State != model.StateFailed || report.Artifact != "" {
			t.Errorf("expected failed run without artifact, got %v %q", report.State, report.Artifact)
		}
		if s.Calls() != 1 {
			t.Errorf("expected one write attempt, got %d", s.Calls())
		}
	})

	t.Run("untyped sink error is wrapped", func(t *testing.T) {
		t.Parallel()

		m := &engine.MockEngine{DiscoverFunc: engine.StaticLinks("a.com"), ExtractFunc: failFor()}
		cause := errors.New("disk full")
		s := &recordingSink{err: cause}

		_, err := newTestOrchestrator(m, s).Run(context.Background(), testInput())
		var se *model.SinkError
		if !errors.As(err, &se) || se.Sink != "recording" || !errors.Is(err, cause) {
			t.Errorf("expected wrapped sink failure, got %v", err)
		}
	})
}

// TestRunPacing checks the spacing between consecutive extraction starts.
func TestRunPacing(t *testing.T) {
	t.Parallel()

	interval := 30 * time.Millisecond

	var (
		mu     sync.Mutex
		starts []time.Time
	)
	m := &engine.MockEngine{
		DiscoverFunc: engine.StaticLinks("a.com", "b.com", "c.com"),
		ExtractFunc: func(ctx context.Context, wf workflow.Definition, creds model.Credentials, p model.Params) (engine.Output, error) {
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()
			return failFor()(ctx, wf, creds, p)
		},
	}

	_, err := newTestOrchestrator(m, &recordingSink{}, WithRateLimiter(ratelimit.NewFixed(interval))).Run(context.Background(), testInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < interval {
			t.Errorf("gap between target %d and %d was %v, expected at least %v", i-1, i, gap, interval)
		}
	}
}

// TestRunCancellation covers cancelling a run mid-extraction.
func TestRunCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := &engine.MockEngine{
		DiscoverFunc: engine.StaticLinks("a.com", "b.com", "c.com"),
		ExtractFunc: func(ctx context.Context, _ workflow.Definition, _ model.Credentials, p model.Params) (engine.Output, error) {
			if p[model.ParamURL] == "b.com" {
				cancel()
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return engine.Output{engine.FieldDataExtractor: record(p[model.ParamURL])}, nil
		},
	}
	s := &recordingSink{}

	// Skip mode still stops: cancellation is always fatal.
	report, err := newTestOrchestrator(m, s, WithFailurePolicy(model.SkipAndContinue)).Run(ctx, testInput())
	if !errors.Is(err, ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancelled run, got %v", err)
	}
	if report.ErrorKind != "cancelled" {
		t.Errorf("expected kind cancelled, got %q", report.ErrorKind)
	}
	if s.Calls() != 0 {
		t.Errorf("expected no sink write, got %d", s.Calls())
	}
	if got := m.ExtractedURLs(); !reflect.DeepEqual(got, []string{"a.com", "b.com"}) {
		t.Errorf("expected c.com not attempted, got %v", got)
	}
}

// TestRunTransitions checks the state sequence seen by the hook.
func TestRunTransitions(t *testing.T) {
	t.Parallel()

	m := &engine.MockEngine{DiscoverFunc: engine.StaticLinks("a.com", "b.com"), ExtractFunc: failFor()}

	var got []Transition
	hook := func(tr Transition) { got = append(got, tr) }

	if _, err := newTestOrchestrator(m, &recordingSink{}, WithTransitionHook(hook)).Run(context.Background(), testInput()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Transition{
		{From: model.StateIdle, To: model.StateDiscovering, Index: -1},
		{From: model.StateDiscovering, To: model.StateExtracting, Index: 0},
		{From: model.StateExtracting, To: model.StateExtracting, Index: 1},
		{From: model.StateExtracting, To: model.StateFinalizing, Index: -1},
		{From: model.StateFinalizing, To: model.StateDone, Index: -1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

// TestRunCredentialsAndClock checks credential threading and report timestamps.
func TestRunCredentialsAndClock(t *testing.T) {
	t.Parallel()

	check := func(creds model.Credentials) error {
		if creds != testCreds {
			return errors.New("unexpected credentials")
		}
		return nil
	}
	m := &engine.MockEngine{
		DiscoverFunc: func(_ context.Context, _ workflow.Definition, creds model.Credentials) (engine.Output, error) {
			if err := check(creds); err != nil {
				return nil, err
			}
			return engine.Output{engine.FieldUniqueLinks: []any{"a.com"}}, nil
		},
		ExtractFunc: func(_ context.Context, _ workflow.Definition, creds model.Credentials, _ model.Params) (engine.Output, error) {
			if err := check(creds); err != nil {
				return nil, err
			}
			return engine.Output{engine.FieldDataExtractor: "A"}, nil
		},
	}

	var (
		mu  sync.Mutex
		now = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}

	in := testInput()
	report, err := newTestOrchestrator(m, &recordingSink{}, WithClock(clock)).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Elapsed() <= 0 {
		t.Errorf("expected positive elapsed time, got %v", report.Elapsed())
	}
	if report.Outcomes[0].Duration != time.Second {
		t.Errorf("expected one clock tick per extraction, got %v", report.Outcomes[0].Duration)
	}
	if report.DiscoveryDigest == "" || report.ExtractionDigest == "" {
		t.Error("expected workflow digests on the report")
	}
}
