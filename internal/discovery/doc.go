// Package discovery runs the discovery workflow that produces the list of
// target URLs for a crawl.
//
// The runner is a thin adapter over the extraction engine: it invokes the
// discovery workflow once and reads the unique_links field. The list is
// returned exactly as the engine produced it. Deduplication is the
// workflow's job, so the runner never sorts, trims or filters.
package discovery
