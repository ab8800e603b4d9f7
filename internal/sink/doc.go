// Package sink persists the finalized result set of a crawl.
//
// The artifact is a JSON array of extraction records in discovery order,
// indented with two spaces. An empty result set is written as [].
// Sinks are called at most once per run, after all targets were processed.
package sink
