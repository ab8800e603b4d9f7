// Package report renders run summaries.
//
// The output artifact only holds extracted records. The summaries written
// here describe the run itself: how many targets were discovered, which ones
// failed and why, and where the artifact went.
//
// Three formats are available:
//   - SimpleWriter: plain text for terminal display
//   - MarkdownWriter: tables and a mermaid chart, for sharing
//   - JSONWriter: a machine-readable summary for tooling
//
// All writers implement Writer and can be combined with MultiWriter.
package report
