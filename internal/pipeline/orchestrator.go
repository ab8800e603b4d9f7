package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/pharmacrawl/internal/model"
	"github.com/nao1215/pharmacrawl/internal/ratelimit"
	"github.com/nao1215/pharmacrawl/internal/sink"
	"github.com/nao1215/pharmacrawl/internal/workflow"
)

// Discoverer produces the ordered target list.
type Discoverer interface {
	Discover(ctx context.Context, wf workflow.Definition, creds model.Credentials) ([]string, error)
}

// Extractor produces the record for one target.
type Extractor interface {
	Extract(ctx context.Context, wf workflow.Definition, creds model.Credentials, url string) (model.ExtractionResult, error)
}

// Transition is a state change observed by a transition hook.
type Transition struct {
	From model.RunState
	To   model.RunState

	// Index is the target index when To is StateExtracting, otherwise -1.
	Index int
}

// Input is what a single run needs.
type Input struct {
	// DiscoveryWorkflow is loaded when discovery starts.
	DiscoveryWorkflow workflow.Source

	// ExtractionWorkflow is loaded once, after discovery succeeded.
	ExtractionWorkflow workflow.Source

	// Credentials are passed through to every engine call.
	Credentials model.Credentials
}

// Orchestrator drives one crawl run from discovery to the sink.
// An Orchestrator may run several times; runs share no state.
//
// A run moves through Discovering, Extracting(i) for each target in
// discovery order, Finalizing and then Done or Failed. The extraction
// workflow is loaded only once discovery has returned targets. Records are
// collected in memory and handed to the sink in a single Write when the run
// reaches Finalizing. A run that fails before that point writes nothing.
//
// Design decision: We keep every record in memory until Finalizing rather
// than streaming them to the sink because:
// 1. A fail-fast abort must leave no partial artifact behind
// 2. The artifact is ordered by discovery index, also when extraction runs
//    concurrently and finishes out of order
// 3. Run history already records per-target outcomes for diagnosis
//
// With a concurrency above one, a Fixed limiter is replaced by a Shared
// limiter of the same interval so that all workers draw on one pace.
type Orchestrator struct {
	discoverer  Discoverer
	extractor   Extractor
	sink        sink.Sink
	limiter     ratelimit.Limiter
	policy      model.FailurePolicy
	concurrency int
	hook        func(Transition)
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithRateLimiter sets the limiter waited on between extraction requests.
// The default is ratelimit.NewFixed(ratelimit.DefaultInterval).
func WithRateLimiter(l ratelimit.Limiter) Option {
	return func(o *Orchestrator) {
		o.limiter = l
	}
}

// WithFailurePolicy sets what an extraction failure does to the run.
func WithFailurePolicy(p model.FailurePolicy) Option {
	return func(o *Orchestrator) {
		o.policy = p
	}
}

// WithConcurrency sets how many targets may be extracted at once.
// Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithTransitionHook registers fn to observe every state change.
// Calls are serialized, also when extracting concurrently.
func WithTransitionHook(fn func(Transition)) Option {
	return func(o *Orchestrator) {
		o.hook = fn
	}
}

// WithClock replaces time.Now for timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an Orchestrator.
func New(d Discoverer, x Extractor, s sink.Sink, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		discoverer:  d,
		extractor:   x,
		sink:        s,
		policy:      model.FailFast,
		concurrency: 1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.limiter == nil {
		o.limiter = ratelimit.NewFixed(ratelimit.DefaultInterval)
	}
	// A Fixed limiter sleeps per caller; concurrent workers need one bucket.
	if f, ok := o.limiter.(*ratelimit.Fixed); ok && o.concurrency > 1 {
		o.limiter = ratelimit.NewShared(f.Interval())
	}

	return o
}

// run holds the per-run mutable state.
type run struct {
	o      *Orchestrator
	report *model.RunReport
	mu     sync.Mutex
}

// enter moves the run to state to and notifies the hook.
func (r *run) enter(to model.RunState, index int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	from := r.report.State
	r.report.State = to
	if r.o.hook != nil {
		r.o.hook(Transition{From: from, To: to, Index: index})
	}
}

// fail moves the run to StateFailed.
func (r *run) fail(err error) (*model.RunReport, error) {
	r.enter(model.StateFailed, -1)
	r.report.Fail(err)
	r.report.FinishedAt = r.o.now()

	r.o.logger.Error("run failed",
		"kind", r.report.ErrorKind,
		"error", err,
		"succeeded", r.report.SucceededCount(),
		"failed", r.report.FailedCount(),
		"not_attempted", r.report.NotAttemptedCount(),
	)
	return r.report, err
}

// Run executes one crawl. The report is always returned; the error is nil
// exactly when the report state is StateDone.
func (o *Orchestrator) Run(ctx context.Context, in Input) (*model.RunReport, error) {
	r := &run{o: o, report: model.NewRunReport(o.policy)}
	r.report.StartedAt = o.now()

	r.enter(model.StateDiscovering, -1)

	// An unloadable discovery workflow is a discovery failure whose cause
	// still matches ErrConfigLoad.
	discoveryWF, err := load(in.DiscoveryWorkflow, "discovery")
	if err != nil {
		return r.fail(&model.DiscoveryError{Err: err})
	}
	r.report.DiscoveryDigest = discoveryWF.Digest()

	if err := ctx.Err(); err != nil {
		return r.fail(cancelled(err))
	}

	targets, err := o.discoverer.Discover(ctx, discoveryWF, in.Credentials)
	if err != nil {
		if ctx.Err() != nil {
			return r.fail(cancelled(ctx.Err()))
		}
		return r.fail(err)
	}

	r.report.Targets = targets
	r.report.Outcomes = make([]model.TargetOutcome, len(targets))
	for i, url := range targets {
		r.report.Outcomes[i] = model.TargetOutcome{Index: i, URL: url, Status: model.TargetNotAttempted}
	}
	r.report.Results = model.NewResultSet(len(targets))

	o.logger.Info("targets discovered", "count", len(targets), "policy", o.policy.String())

	if len(targets) > 0 {
		extractionWF, err := load(in.ExtractionWorkflow, "extraction")
		if err != nil {
			return r.fail(err)
		}
		r.report.ExtractionDigest = extractionWF.Digest()

		if o.concurrency > 1 {
			err = r.extractConcurrent(ctx, extractionWF, in.Credentials)
		} else {
			err = r.extractSequential(ctx, extractionWF, in.Credentials)
		}
		if err != nil {
			return r.fail(err)
		}
	}

	r.enter(model.StateFinalizing, -1)

	if err := o.sink.Write(ctx, r.report.Results); err != nil {
		var se *model.SinkError
		if !errors.As(err, &se) {
			err = &model.SinkError{Sink: o.sink.Name(), Err: err}
		}
		return r.fail(err)
	}
	r.report.Artifact = o.sink.Name()

	r.enter(model.StateDone, -1)
	r.report.FinishedAt = o.now()

	o.logger.Info("run complete",
		"artifact", r.report.Artifact,
		"records", r.report.Results.Len(),
		"failed", r.report.FailedCount(),
		"elapsed", r.report.Elapsed(),
	)
	return r.report, nil
}

// extractSequential processes targets one at a time in discovery order.
func (r *run) extractSequential(ctx context.Context, wf workflow.Definition, creds model.Credentials) error {
	o := r.o
	targets := r.report.Targets

	for i, url := range targets {
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}

		r.enter(model.StateExtracting, i)

		start := o.now()
		res, err := o.extractor.Extract(ctx, wf, creds, url)
		elapsed := o.now().Sub(start)

		if err != nil {
			r.recordFailure(i, err, elapsed)
			if ctx.Err() != nil {
				return cancelled(ctx.Err())
			}
			if o.policy == model.FailFast {
				return err
			}
			o.logger.Warn("skipping target", "index", i, "url", url, "error", err)
		} else {
			r.recordSuccess(i, res, elapsed)
			o.logger.Info("target extracted", "index", i+1, "total", len(targets), "url", url)
		}

		if err := o.limiter.Wait(ctx); err != nil {
			return cancelled(err)
		}
	}
	return nil
}

func (r *run) recordSuccess(i int, res model.ExtractionResult, elapsed time.Duration) {
	res.Index = i
	r.report.Results.Append(res)
	r.report.Outcomes[i].Status = model.TargetSucceeded
	r.report.Outcomes[i].Duration = elapsed
}

func (r *run) recordFailure(i int, err error, elapsed time.Duration) {
	r.report.Outcomes[i].Status = model.TargetFailed
	r.report.Outcomes[i].Error = err.Error()
	r.report.Outcomes[i].Duration = elapsed
}

// load reads a workflow source, reporting a nil source as a load failure.
func load(src workflow.Source, name string) (workflow.Definition, error) {
	if src == nil {
		return workflow.Definition{}, &model.ConfigLoadError{Path: name, Err: ErrNoWorkflow}
	}
	return src.Load()
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}
