package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/pharmacrawl/internal/config"
	"github.com/nao1215/pharmacrawl/internal/database"
	"github.com/spf13/cobra"
)

// defaultHistoryLimit is how many runs history lists without --limit.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show previous crawl runs",
		Long: `History shows the runs recorded in the local history database.

Examples:
  # List the most recent runs
  pharmacrawl history

  # Show per-page outcomes of run 12
  pharmacrawl history --run 12

  # Print the failed URLs of the latest run, one per line
  pharmacrawl history --failed`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "l", defaultHistoryLimit,
		"Maximum number of runs to list")
	cmd.Flags().Int64("run", 0,
		"Show the per-page outcomes of this run ID")
	cmd.Flags().Bool("failed", false,
		"Print only the failed URLs (of --run, or of the latest run)")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"History database directory")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	runID, err := cmd.Flags().GetInt64("run")
	if err != nil {
		return err
	}
	failedOnly, err := cmd.Flags().GetBool("failed")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if _, err := os.Stat(filepath.Join(dbDir, database.FileName)); errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(out, "No runs recorded yet.")
		fmt.Fprintln(out, "\nUse 'pharmacrawl crawl' to start a crawl.")
		return nil
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case failedOnly:
		return printFailedTargets(ctx, out, db, runID)
	case runID != 0:
		return printRun(ctx, out, db, runID)
	default:
		return listRuns(ctx, out, db, limit)
	}
}

// errRunNotFound is returned when a run ID is not in the database.
var errRunNotFound = errors.New("run not found")

// listRuns prints the most recent runs, newest first.
func listRuns(ctx context.Context, out io.Writer, db *database.RunDB, limit int) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		fmt.Fprintln(out, "\nUse 'pharmacrawl crawl' to start a crawl.")
		return nil
	}

	fmt.Fprintf(out, "Recent runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-6s  %-20s  %-7s  %-10s  %s\n", "ID", "Started", "State", "Policy", "OK/Failed/Skipped")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 72))

	for _, r := range runs {
		fmt.Fprintf(out, "  %-6d  %-20s  %-7s  %-10s  %d/%d/%d\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.State,
			r.Policy,
			r.Succeeded, r.Failed, r.NotAttempted(),
		)
	}

	fmt.Fprintln(out, "\nUse 'pharmacrawl history --run <id>' to see per-page outcomes.")
	return nil
}

// printRun prints one run with its per-target outcomes.
func printRun(ctx context.Context, out io.Writer, db *database.RunDB, runID int64) error {
	r, err := db.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to get run %d: %w", runID, err)
	}
	if r == nil {
		return fmt.Errorf("%w: %d", errRunNotFound, runID)
	}

	fmt.Fprintf(out, "Run %d: %s (%s)\n", r.ID, r.State, r.Policy)
	fmt.Fprintf(out, "  Started:  %s\n", r.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "  Finished: %s\n", r.FinishedAt.Local().Format("2006-01-02 15:04:05"))
	if r.Artifact != "" {
		fmt.Fprintf(out, "  Artifact: %s\n", r.Artifact)
	}
	if r.Error != "" {
		fmt.Fprintf(out, "  Error:    [%s] %s\n", r.ErrorKind, r.Error)
	}
	fmt.Fprintf(out, "  Pages:    %d discovered, %d succeeded, %d failed, %d not attempted\n\n",
		r.Discovered, r.Succeeded, r.Failed, r.NotAttempted())

	for _, t := range r.Targets {
		line := fmt.Sprintf("  %4d  %-13s  %s", t.Index, t.Status, t.URL)
		if t.Error != "" {
			line += "  (" + t.Error + ")"
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

// printFailedTargets prints the failed URLs of a run, one per line, so the
// output can be fed to a rerun.
func printFailedTargets(ctx context.Context, out io.Writer, db *database.RunDB, runID int64) error {
	if runID == 0 {
		latest, err := db.LatestRunID(ctx)
		if err != nil {
			return fmt.Errorf("failed to find latest run: %w", err)
		}
		if latest == 0 {
			return errRunNotFound
		}
		runID = latest
	}

	targets, err := db.FailedTargets(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to get failed targets of run %d: %w", runID, err)
	}
	for _, t := range targets {
		fmt.Fprintln(out, t.URL)
	}
	return nil
}
