// Package model defines the core data structures used throughout pharmacrawl.
//
// This package contains the following main types:
//   - Credentials: The two engine API keys, threaded explicitly through a run
//   - Params: Parameters passed to a single extraction invocation
//   - ExtractionResult: One structured record produced for one target URL
//   - ResultSet: The ordered, append-only accumulation of results for a run
//   - RunReport: The outcome of a whole run (state, error, per-target outcomes)
//
// It also defines the run error kinds (ErrConfigLoad, ErrDiscovery,
// ErrExtraction, ErrSink) so that every package reports failures in the
// same vocabulary without importing the pipeline.
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The pipeline, sink, database and report packages all need
// these types, so centralizing them prevents import cycles.
package model
