// Package engine defines the extraction engine capability and its clients.
//
// The extraction engine executes declarative workflow definitions against
// live data sources. pharmacrawl treats it as a black box: it hands the
// engine a workflow text, the credentials and optional parameters, and reads
// named fields from the returned output.
//
//   - Discover runs the discovery workflow; its output exposes unique_links.
//   - Extract runs the per-target workflow with {url}; its output exposes
//     data_extractor.
//
// HTTPEngine talks to a remote workflow runner over HTTP. MockEngine is a
// scripted engine for tests.
package engine
