package model

import (
	"context"
	"errors"
	"time"
)

// RunState is a state of the orchestrator state machine.
type RunState int

const (
	// StateIdle is the state before Run is called.
	StateIdle RunState = iota
	// StateDiscovering means the discovery phase is running.
	StateDiscovering
	// StateExtracting means targets are being extracted one by one.
	StateExtracting
	// StateFinalizing means the result set is being handed to the sink.
	StateFinalizing
	// StateDone is the terminal success state.
	StateDone
	// StateFailed is the terminal failure state.
	StateFailed
)

// String returns the lowercase state name.
func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDiscovering:
		return "discovering"
	case StateExtracting:
		return "extracting"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is Done or Failed.
func (s RunState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// MarshalText implements encoding.TextMarshaler.
func (s RunState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// FailurePolicy decides what a failed target extraction does to the run.
type FailurePolicy int

const (
	// FailFast aborts the whole run on the first extraction failure and
	// writes no artifact.
	FailFast FailurePolicy = iota
	// SkipAndContinue records the failure, skips the target and continues.
	SkipAndContinue
)

// String returns the policy name used in configuration files and flags.
func (p FailurePolicy) String() string {
	switch p {
	case FailFast:
		return "fail-fast"
	case SkipAndContinue:
		return "skip"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p FailurePolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ErrUnknownFailurePolicy is returned by ParseFailurePolicy for unknown names.
var ErrUnknownFailurePolicy = errors.New("unknown failure policy: use fail-fast or skip")

// ParseFailurePolicy parses "fail-fast" or "skip". The empty string is FailFast.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "fail-fast", "failfast":
		return FailFast, nil
	case "skip", "skip-and-continue", "continue":
		return SkipAndContinue, nil
	default:
		return FailFast, ErrUnknownFailurePolicy
	}
}

// Target outcome statuses.
const (
	TargetSucceeded    = "succeeded"
	TargetFailed       = "failed"
	TargetNotAttempted = "not_attempted"
)

// TargetOutcome records what happened to one discovered target.
type TargetOutcome struct {
	// Index is the position in discovery order.
	Index int `json:"index"`

	// URL is the target URL.
	URL string `json:"url"`

	// Status is one of TargetSucceeded, TargetFailed or TargetNotAttempted.
	Status string `json:"status"`

	// Error is the failure message for failed targets.
	Error string `json:"error,omitempty"`

	// Duration is how long the extraction call took.
	Duration time.Duration `json:"duration"`
}

// RunReport is the outcome of one run, returned by the orchestrator whether
// the run succeeded or not.
type RunReport struct {
	// State is the terminal state (StateDone or StateFailed).
	State RunState `json:"state"`

	// Err is the causing error when State is StateFailed.
	Err error `json:"-"`

	// ErrorMessage is Err rendered as text, kept for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// ErrorKind classifies Err (see ErrorKind).
	ErrorKind string `json:"error_kind,omitempty"`

	// FailedURL is the offending target when the run failed on an extraction.
	FailedURL string `json:"failed_url,omitempty"`

	// Policy is the failure policy the run used.
	Policy FailurePolicy `json:"policy"`

	// Targets is the discovered target list in discovery order.
	Targets []string `json:"targets"`

	// Outcomes holds one entry per discovered target.
	Outcomes []TargetOutcome `json:"outcomes"`

	// Results is the accumulated result set.
	Results *ResultSet `json:"-"`

	// DiscoveryDigest and ExtractionDigest identify the workflow texts used.
	DiscoveryDigest  string `json:"discovery_digest,omitempty"`
	ExtractionDigest string `json:"extraction_digest,omitempty"`

	// Artifact names where the result set was written, if it was.
	Artifact string `json:"artifact,omitempty"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewRunReport creates an empty report in StateIdle.
func NewRunReport(policy FailurePolicy) *RunReport {
	return &RunReport{
		State:    StateIdle,
		Policy:   policy,
		Targets:  []string{},
		Outcomes: []TargetOutcome{},
		Results:  NewResultSet(0),
	}
}

// Fail moves the report to StateFailed and records err.
func (r *RunReport) Fail(err error) {
	r.State = StateFailed
	r.Err = err
	if err != nil {
		r.ErrorMessage = err.Error()
		r.ErrorKind = ErrorKind(err)
		var ee *ExtractionError
		if errors.As(err, &ee) {
			r.FailedURL = ee.URL
		}
	}
}

// Succeeded reports whether the run reached StateDone.
func (r *RunReport) Succeeded() bool {
	return r.State == StateDone
}

// SucceededCount returns the number of targets extracted successfully.
func (r *RunReport) SucceededCount() int {
	return r.countStatus(TargetSucceeded)
}

// FailedCount returns the number of targets whose extraction failed.
func (r *RunReport) FailedCount() int {
	return r.countStatus(TargetFailed)
}

// NotAttemptedCount returns the number of targets never attempted.
func (r *RunReport) NotAttemptedCount() int {
	return r.countStatus(TargetNotAttempted)
}

// FailedOutcomes returns the outcomes of failed targets in discovery order.
func (r *RunReport) FailedOutcomes() []TargetOutcome {
	var out []TargetOutcome
	for _, o := range r.Outcomes {
		if o.Status == TargetFailed {
			out = append(out, o)
		}
	}
	return out
}

// Elapsed returns the wall-clock duration of the run.
func (r *RunReport) Elapsed() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *RunReport) countStatus(status string) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
