package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nao1215/pharmacrawl/internal/config"
	"github.com/nao1215/pharmacrawl/internal/database"
	"github.com/nao1215/pharmacrawl/internal/discovery"
	"github.com/nao1215/pharmacrawl/internal/engine"
	"github.com/nao1215/pharmacrawl/internal/extraction"
	"github.com/nao1215/pharmacrawl/internal/log"
	"github.com/nao1215/pharmacrawl/internal/model"
	"github.com/nao1215/pharmacrawl/internal/pipeline"
	"github.com/nao1215/pharmacrawl/internal/ratelimit"
	"github.com/nao1215/pharmacrawl/internal/report"
	"github.com/nao1215/pharmacrawl/internal/sink"
	"github.com/nao1215/pharmacrawl/internal/workflow"
	"github.com/spf13/cobra"
)

// historyTimeout bounds the history write after a run, cancelled or not.
const historyTimeout = 10 * time.Second

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Discover pharmacy pages and extract one record per page",
		Long: `Crawl runs the discovery workflow once to obtain the list of store page URLs,
then runs the extraction workflow for each URL in discovery order and writes
all records as a JSON array.

By default the first failed page aborts the run and no file is written.
Use --skip-failures to record failures and write whatever succeeded.

Examples:
  # Crawl with discovery.yaml and scraper.yaml in the current directory
  pharmacrawl crawl

  # Custom workflows and output
  pharmacrawl crawl -D flows/discover.yaml -X flows/scrape.yaml -o out/pharmacies.json

  # Keep going past failed pages, two requests in flight, one request per 2s
  pharmacrawl crawl --skip-failures -n 2 -r 2s

  # Write the records to stdout and a JSON summary to stderr
  pharmacrawl crawl -o - --summary json`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().StringP("discovery-workflow", "D", config.DefaultDiscoveryWorkflow,
		"Discovery workflow file")
	cmd.Flags().StringP("extraction-workflow", "X", config.DefaultExtractionWorkflow,
		"Extraction workflow file")
	cmd.Flags().StringP("output", "o", config.DefaultOutput,
		"Output JSON file (- for stdout)")

	cmd.Flags().DurationP("rate-limit", "r", config.DefaultRateLimit,
		"Pause after each extraction request (0 disables)")
	cmd.Flags().DurationP("timeout", "t", 0,
		"Timeout for each extraction request (0 disables)")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of pages extracted at once")
	cmd.Flags().BoolP("skip-failures", "s", false,
		"Skip failed pages instead of aborting the run")

	cmd.Flags().StringP("engine", "e", config.DefaultEngineEndpoint,
		"Workflow runner endpoint")
	cmd.Flags().Duration("engine-timeout", config.DefaultEngineTimeout,
		"Timeout for a single workflow runner request")
	cmd.Flags().String("engine-proxy", "",
		"SOCKS5 proxy for workflow runner traffic (host:port)")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .pharmacrawl in current or home directory)")
	cmd.Flags().Bool("no-history", false,
		"Do not record the run in the history database")
	cmd.Flags().String("summary", config.SummaryText,
		"Summary format printed to stderr: text, markdown, json or none")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	creds, err := config.LoadCredentials()
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, creds, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from defaults, the config file and the flags,
// in that order of increasing priority. Only flags set on the command line
// override the config file.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicit path that does not exist is an error; a missing default
	// file is not.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		if err := file.ApplyTo(cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	flags := cmd.Flags()
	changed := flags.Changed

	if changed("discovery-workflow") {
		if cfg.DiscoveryWorkflow, err = flags.GetString("discovery-workflow"); err != nil {
			return nil, err
		}
	}
	if changed("extraction-workflow") {
		if cfg.ExtractionWorkflow, err = flags.GetString("extraction-workflow"); err != nil {
			return nil, err
		}
	}
	if changed("output") {
		if cfg.Output, err = flags.GetString("output"); err != nil {
			return nil, err
		}
	}
	if changed("rate-limit") {
		if cfg.RateLimit, err = flags.GetDuration("rate-limit"); err != nil {
			return nil, err
		}
	}
	if changed("timeout") {
		if cfg.ExtractionTimeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if changed("concurrency") {
		if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
			return nil, err
		}
	}
	if changed("skip-failures") {
		skip, err := flags.GetBool("skip-failures")
		if err != nil {
			return nil, err
		}
		if skip {
			cfg.Policy = model.SkipAndContinue
		} else {
			cfg.Policy = model.FailFast
		}
	}
	if changed("engine") {
		if cfg.EngineEndpoint, err = flags.GetString("engine"); err != nil {
			return nil, err
		}
	}
	if changed("engine-timeout") {
		if cfg.EngineTimeout, err = flags.GetDuration("engine-timeout"); err != nil {
			return nil, err
		}
	}
	if changed("engine-proxy") {
		if cfg.EngineProxy, err = flags.GetString("engine-proxy"); err != nil {
			return nil, err
		}
	}
	if changed("no-history") {
		noHistory, err := flags.GetBool("no-history")
		if err != nil {
			return nil, err
		}
		cfg.SaveHistory = !noHistory
	}
	if changed("summary") {
		if cfg.Summary, err = flags.GetString("summary"); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// runCrawl wires the components for cfg and performs one run.
// The artifact goes to stdout when cfg says so; the summary always goes to stderr.
func runCrawl(ctx context.Context, cfg *config.Config, creds model.Credentials, stdout, stderr io.Writer, logger *slog.Logger) error {
	eng, err := newEngine(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create workflow engine: %w", err)
	}

	orch := pipeline.New(
		discovery.NewRunner(eng, discovery.WithLogger(logger)),
		extraction.NewExtractor(eng,
			extraction.WithTimeout(cfg.ExtractionTimeout),
			extraction.WithLogger(logger),
		),
		newSink(cfg, stdout),
		pipeline.WithLogger(logger),
		pipeline.WithRateLimiter(newLimiter(cfg)),
		pipeline.WithFailurePolicy(cfg.Policy),
		pipeline.WithConcurrency(cfg.Concurrency),
	)

	logger.Info("starting crawl",
		"discovery_workflow", cfg.DiscoveryWorkflow,
		"extraction_workflow", cfg.ExtractionWorkflow,
		"output", cfg.Output,
		"engine", cfg.EngineEndpoint,
		"concurrency", cfg.Concurrency,
	)

	runReport, runErr := orch.Run(ctx, pipeline.Input{
		DiscoveryWorkflow:  workflow.NewFile("discovery", cfg.DiscoveryWorkflow),
		ExtractionWorkflow: workflow.NewFile("extraction", cfg.ExtractionWorkflow),
		Credentials:        creds,
	})

	if cfg.SaveHistory {
		saveRun(ctx, cfg.DBDir, runReport, logger)
	}

	if err := writeSummary(stderr, cfg, runReport); err != nil {
		logger.Error("failed to write summary", "error", err)
	}

	if runErr != nil {
		return fmt.Errorf("crawl failed: %w", runErr)
	}
	return nil
}

// newEngine creates the HTTP workflow engine for cfg.
func newEngine(cfg *config.Config, logger *slog.Logger) (*engine.HTTPEngine, error) {
	opts := []engine.HTTPOption{
		engine.WithTimeout(cfg.EngineTimeout),
		engine.WithUserAgent("pharmacrawl/" + getVersion()),
		engine.WithLogger(logger),
	}
	if cfg.EngineProxy != "" {
		opts = append(opts, engine.WithProxy(cfg.EngineProxy))
	}
	return engine.NewHTTPEngine(cfg.EngineEndpoint, opts...)
}

// newLimiter returns a Fixed pause for sequential runs and a Shared token
// bucket when several workers issue requests.
func newLimiter(cfg *config.Config) ratelimit.Limiter {
	if cfg.Concurrency > 1 {
		return ratelimit.NewShared(cfg.RateLimit)
	}
	return ratelimit.NewFixed(cfg.RateLimit)
}

// newSink returns the artifact sink for cfg.
func newSink(cfg *config.Config, stdout io.Writer) sink.Sink {
	if cfg.WritesToStdout() {
		return sink.NewStream("stdout", stdout)
	}
	return sink.NewJSONFile(cfg.Output)
}

// saveRun records the run in the history database. Failures are logged and
// never change the run outcome.
func saveRun(ctx context.Context, dbDir string, runReport *model.RunReport, logger *slog.Logger) {
	if runReport == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	defer cancel()

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		logger.Warn("failed to open history database", "dir", dbDir, "error", err)
		return
	}
	defer db.Close()

	id, err := db.SaveRun(ctx, runReport)
	if err != nil {
		logger.Warn("failed to save run history", "error", err)
		return
	}
	logger.Info("run saved to history", "run_id", id)
}

// errUnknownSummary is returned for a summary format Validate did not catch.
var errUnknownSummary = errors.New("unknown summary format")

// newSummaryWriter returns the report writer for format, or nil for none.
func newSummaryWriter(w io.Writer, format string, verbose bool) (report.Writer, error) {
	switch format {
	case config.SummaryText:
		return report.NewSimpleWriter(w, report.WithVerbose(verbose)), nil
	case config.SummaryMarkdown:
		return report.NewMarkdownWriter(w), nil
	case config.SummaryJSON:
		return report.NewJSONWriter(w, report.WithPrettyPrint()), nil
	case config.SummaryNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownSummary, format)
	}
}

// writeSummary prints the run summary in the configured format.
func writeSummary(w io.Writer, cfg *config.Config, runReport *model.RunReport) error {
	if runReport == nil {
		return nil
	}
	writer, err := newSummaryWriter(w, cfg.Summary, cfg.Verbose)
	if err != nil || writer == nil {
		return err
	}
	_, err = writer.Write(runReport)
	return err
}
