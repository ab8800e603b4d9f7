// Package pipeline orchestrates a crawl run.
//
// A run moves through a small state machine:
//
//	Idle -> Discovering -> Extracting(0..n-1) -> Finalizing -> Done
//
// with Failed reachable from every non-terminal state. Discovering loads the
// discovery workflow and asks the Discoverer for the target list. Extracting
// walks that list in order, calling the Extractor once per target and pausing
// on the rate limiter after each attempt. Finalizing hands the accumulated
// result set to the sink exactly once.
//
// The failure policy decides what an extraction failure does. FailFast (the
// default) ends the run immediately and nothing is written. SkipAndContinue
// records the failure and moves on, so the artifact holds every target that
// succeeded.
//
// WithConcurrency(k) with k > 1 extracts up to k targets at once using
// errgroup. Issuance is still paced by one shared limiter and results are
// merged back into discovery order before finalization.
package pipeline
