package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/nao1215/pharmacrawl/internal/model"
	"github.com/nao1215/pharmacrawl/internal/workflow"
	"golang.org/x/sync/errgroup"
)

// extractConcurrent processes targets with up to o.concurrency calls in
// flight. Each result lands in a slot preallocated by discovery index, and
// slots are merged in index order once every worker has returned.
//
// Under FailFast the first failure cancels the group. Calls aborted by that
// cancellation stay not_attempted, and the lowest-index genuine failure is
// returned.
func (r *run) extractConcurrent(ctx context.Context, wf workflow.Definition, creds model.Credentials) error {
	o := r.o
	targets := r.report.Targets

	o.logger.Info("starting concurrent extraction",
		"targets", len(targets),
		"concurrency", o.concurrency,
	)

	slots := make([]*model.ExtractionResult, len(targets))
	failures := make([]error, len(targets))

	var (
		abortOnce sync.Once
		abortErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i, url := range targets {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := o.limiter.Wait(gctx); err != nil {
				if ctx.Err() == nil && gctx.Err() != nil {
					return nil
				}
				abortOnce.Do(func() { abortErr = err })
				return err
			}

			r.enter(model.StateExtracting, i)

			start := o.now()
			res, err := o.extractor.Extract(gctx, wf, creds, url)
			elapsed := o.now().Sub(start)

			if err != nil {
				// Aborted because a sibling failed; not this target's fault.
				if ctx.Err() == nil && gctx.Err() != nil && errors.Is(err, context.Canceled) {
					return nil
				}
				failures[i] = err
				r.recordFailure(i, err, elapsed)
				if o.policy == model.FailFast {
					return err
				}
				o.logger.Warn("skipping target", "index", i, "url", url, "error", err)
				return nil
			}

			res.Index = i
			slots[i] = &res
			r.report.Outcomes[i].Status = model.TargetSucceeded
			r.report.Outcomes[i].Duration = elapsed
			o.logger.Info("target extracted", "index", i+1, "total", len(targets), "url", url)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // Failures are read from their slots below

	for _, res := range slots {
		if res != nil {
			r.report.Results.Append(*res)
		}
	}

	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}
	if abortErr != nil {
		return cancelled(abortErr)
	}

	if o.policy == model.FailFast {
		for _, err := range failures {
			if err != nil {
				return err
			}
		}
	}
	return nil
}
