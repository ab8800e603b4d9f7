// Package database provides SQLite-based run history for pharmacrawl.
//
// Every crawl run is recorded with its outcome, per-target status and the
// record extracted for each successful target. The history answers questions
// the output artifact cannot: which targets failed in the last run, how long
// extractions took, and which workflow revisions produced a given artifact.
//
// The database is a single file (pharmacrawl.db) opened through
// modernc.org/sqlite, so no CGO or external server is needed. WAL mode is
// enabled by default.
package database
