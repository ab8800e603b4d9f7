// Package ratelimit paces requests issued to the extraction engine.
//
// Two limiters are provided:
//   - Fixed suspends the caller for a fixed interval on every call. The
//     sequential orchestrator calls it once after each extraction attempt,
//     which guarantees at least one interval between consecutive requests.
//   - Shared is meant to be shared by concurrent workers. It paces the
//     total issuance so that any two releases are at least one interval
//     apart, whichever workers they go to.
//
// Both honor context cancellation while waiting; neither busy-waits.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the delay between extraction requests.
const DefaultInterval = 1000 * time.Millisecond

// Limiter suspends the caller until the next request may be issued.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Fixed waits for the same interval on every call, unconditionally.
// There is no jitter and no adaptive backoff.
type Fixed struct {
	interval time.Duration
}

// NewFixed creates a Fixed limiter. A non-positive interval disables waiting.
func NewFixed(interval time.Duration) *Fixed {
	if interval < 0 {
		interval = 0
	}
	return &Fixed{interval: interval}
}

// Interval returns the configured interval.
func (f *Fixed) Interval() time.Duration {
	return f.interval
}

// Wait blocks for the interval or until ctx is done, whichever comes first.
// It returns ctx.Err() if the context ended before the interval elapsed.
func (f *Fixed) Wait(ctx context.Context) error {
	if f.interval == 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(f.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Shared paces concurrent workers so that the issuances of all of them,
// taken together, are at least one interval apart.
//
// A token bucket with a burst of one hands out the tokens. The bucket alone
// schedules each token from its reservation time, so a worker that wakes
// late would shorten the gap to the next one. Shared therefore also
// remembers when it last released a caller and holds the next one until a
// full interval has passed since then.
//
// Waiters are served one at a time. A waiter whose context ends while
// queued or waiting returns the context error and does not move the
// release time.
//
// Design decision: We serialize waiters on a one-slot channel rather than a
// mutex because:
// 1. A queued waiter can give up when its context ends
// 2. The release time is only read and written by the holder of the slot
type Shared struct {
	limiter  *rate.Limiter
	interval time.Duration

	// turn is a one-slot semaphore guarding last.
	turn chan struct{}
	last time.Time

	// onRelease, when set, observes every release time while turn is held.
	onRelease func(time.Time)
}

// NewShared creates a Shared limiter releasing one request per interval.
// A non-positive interval means no limit.
func NewShared(interval time.Duration) *Shared {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	} else {
		interval = 0
	}
	return &Shared{
		limiter:  rate.NewLimiter(limit, 1),
		interval: interval,
		turn:     make(chan struct{}, 1),
	}
}

// Interval returns the configured interval.
func (s *Shared) Interval() time.Duration {
	return s.interval
}

// Wait blocks until a token is available and one interval has passed since
// the previous release, or until ctx is done. When the token would only
// arrive after the context deadline it fails immediately with
// context.DeadlineExceeded.
func (s *Shared) Wait(ctx context.Context) error {
	if s.interval == 0 {
		return ctx.Err()
	}

	select {
	case s.turn <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.turn }()

	if err := s.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return context.DeadlineExceeded
	}

	if !s.last.IsZero() {
		if d := time.Until(s.last.Add(s.interval)); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	s.last = time.Now()
	if s.onRelease != nil {
		s.onRelease(s.last)
	}
	return nil
}

// Nop never waits. It is useful for tests and for disabling pacing explicitly.
type Nop struct{}

// Wait returns immediately unless ctx is already done.
func (Nop) Wait(ctx context.Context) error {
	return ctx.Err()
}
