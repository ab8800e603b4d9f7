package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/pharmacrawl/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "pharmacrawl.db"

// RunDB provides SQLite-based storage for crawl run history.
//
// A run is stored as one row in runs and one row per discovered target in
// targets, keyed by the run ID and the discovery index. SaveRun writes both
// in a single transaction, so a run is either fully recorded or absent.
// Targets that were never attempted are stored with the not_attempted
// status; FailedTargets returns only those that were attempted and failed.
//
// Design decision: We store the extracted record as JSON text rather than
// normalizing its fields because:
// 1. The record schema belongs to the extraction workflow and changes with it
// 2. The history only needs to show and re-export records, never query them
//
// The connection pool is capped at one connection. SQLite serializes writes
// anyway, and a single connection avoids "database is locked" errors.
type RunDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a RunDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Path returns the database file path.
func (rdb *RunDB) Path() string {
	return rdb.dbPath
}

// Close closes the database connection.
func (rdb *RunDB) Close() error {
	return rdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (rdb *RunDB) createTables() error {
	schema := `
	-- One row per crawl run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		state TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		error_kind TEXT NOT NULL DEFAULT '',
		failed_url TEXT NOT NULL DEFAULT '',
		policy TEXT NOT NULL,
		discovered INTEGER NOT NULL DEFAULT 0,
		succeeded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		artifact TEXT NOT NULL DEFAULT '',
		discovery_digest TEXT NOT NULL DEFAULT '',
		extraction_digest TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- One row per discovered target of a run
	CREATE TABLE IF NOT EXISTS targets (
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		idx INTEGER NOT NULL,
		url TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		record_json TEXT,
		PRIMARY KEY (run_id, idx)
	);

	CREATE INDEX IF NOT EXISTS idx_targets_status ON targets(run_id, status);
	CREATE INDEX IF NOT EXISTS idx_targets_url ON targets(url);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunRecord is a stored run.
type RunRecord struct {
	ID               int64
	StartedAt        time.Time
	FinishedAt       time.Time
	State            string
	Error            string
	ErrorKind        string
	FailedURL        string
	Policy           string
	Discovered       int
	Succeeded        int
	Failed           int
	Artifact         string
	DiscoveryDigest  string
	ExtractionDigest string

	// Targets is only populated by GetRun.
	Targets []TargetRecord
}

// NotAttempted returns the number of targets the run never reached.
func (r *RunRecord) NotAttempted() int {
	return r.Discovered - r.Succeeded - r.Failed
}

// TargetRecord is a stored per-target outcome.
type TargetRecord struct {
	Index    int
	URL      string
	Status   string
	Error    string
	Duration time.Duration

	// Record is the extracted record for succeeded targets, nil otherwise.
	Record json.RawMessage
}

// SaveRun stores report and its per-target outcomes in one transaction and
// returns the new run ID.
func (rdb *RunDB) SaveRun(ctx context.Context, report *model.RunReport) (int64, error) {
	records := make(map[int]any, report.Results.Len())
	for _, res := range report.Results.Results() {
		records[res.Index] = res.Data
	}

	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	result, err := tx.ExecContext(ctx, `
	INSERT INTO runs (started_at, finished_at, state, error, error_kind, failed_url, policy,
		discovered, succeeded, failed, artifact, discovery_digest, extraction_digest)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		report.State.String(),
		report.ErrorMessage,
		report.ErrorKind,
		report.FailedURL,
		report.Policy.String(),
		len(report.Targets),
		report.SucceededCount(),
		report.FailedCount(),
		report.Artifact,
		report.DiscoveryDigest,
		report.ExtractionDigest,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO targets (run_id, idx, url, status, error, duration_ms, record_json)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare target insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range report.Outcomes {
		var recordJSON sql.NullString
		if rec, ok := records[o.Index]; ok {
			data, err := json.Marshal(rec)
			if err != nil {
				return 0, fmt.Errorf("failed to serialize record for %s: %w", o.URL, err)
			}
			recordJSON = sql.NullString{String: string(data), Valid: true}
		}

		if _, err := stmt.ExecContext(ctx,
			runID,
			o.Index,
			o.URL,
			o.Status,
			o.Error,
			o.Duration.Milliseconds(),
			recordJSON,
		); err != nil {
			return 0, fmt.Errorf("failed to insert target %s: %w", o.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}

	return runID, nil
}

const runColumns = `id, started_at, finished_at, state, error, error_kind, failed_url, policy,
	discovered, succeeded, failed, artifact, discovery_digest, extraction_digest`

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*RunRecord, error) {
	var run RunRecord
	var started, finished string
	err := s.Scan(
		&run.ID,
		&started,
		&finished,
		&run.State,
		&run.Error,
		&run.ErrorKind,
		&run.FailedURL,
		&run.Policy,
		&run.Discovered,
		&run.Succeeded,
		&run.Failed,
		&run.Artifact,
		&run.DiscoveryDigest,
		&run.ExtractionDigest,
	)
	if err != nil {
		return nil, err
	}
	run.StartedAt = parseTimestamp(started)
	run.FinishedAt = parseTimestamp(finished)
	return &run, nil
}

// ListRuns returns the most recent runs first, without targets.
// A limit of zero or less returns every run.
func (rdb *RunDB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY id DESC`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := rdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// GetRun retrieves a run and its targets by ID.
// It returns nil without error when the run does not exist.
func (rdb *RunDB) GetRun(ctx context.Context, id int64) (*RunRecord, error) {
	row := rdb.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.Targets, err = rdb.queryTargets(ctx, id, "")
	if err != nil {
		return nil, err
	}
	return run, nil
}

// LatestRunID returns the ID of the most recent run, or 0 if there is none.
func (rdb *RunDB) LatestRunID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := rdb.db.QueryRowContext(ctx, `SELECT MAX(id) FROM runs`).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to get latest run: %w", err)
	}
	return id.Int64, nil
}

// FailedTargets returns the failed targets of a run in discovery order.
func (rdb *RunDB) FailedTargets(ctx context.Context, runID int64) ([]TargetRecord, error) {
	return rdb.queryTargets(ctx, runID, model.TargetFailed)
}

// queryTargets returns the targets of a run, optionally filtered by status.
func (rdb *RunDB) queryTargets(ctx context.Context, runID int64, status string) ([]TargetRecord, error) {
	query := `
	SELECT idx, url, status, error, duration_ms, record_json
	FROM targets
	WHERE run_id = ?
	`
	args := []any{runID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY idx"

	rows, err := rdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query targets: %w", err)
	}
	defer rows.Close()

	var targets []TargetRecord
	for rows.Next() {
		var (
			tr         TargetRecord
			durationMS int64
			recordJSON sql.NullString
		)
		if err := rows.Scan(&tr.Index, &tr.URL, &tr.Status, &tr.Error, &durationMS, &recordJSON); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		tr.Duration = time.Duration(durationMS) * time.Millisecond
		if recordJSON.Valid {
			tr.Record = json.RawMessage(recordJSON.String)
		}
		targets = append(targets, tr)
	}

	return targets, rows.Err()
}

// formatTimestamp stores times as UTC RFC 3339 with nanoseconds.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,          // Written by formatTimestamp
	time.RFC3339,              // Full RFC3339 format
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
