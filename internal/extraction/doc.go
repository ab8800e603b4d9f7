// Package extraction runs the per-target extraction workflow.
//
// One Extract call is one engine invocation with the target URL bound to the
// workflow's url parameter. The engine's data_extractor output becomes the
// record for that target; its shape is owned by the workflow and is not
// validated here.
package extraction
