package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/pharmacrawl/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "pharmacrawl"

	// DefaultDiscoveryWorkflow is the discovery workflow file.
	DefaultDiscoveryWorkflow = "discovery.yaml"

	// DefaultExtractionWorkflow is the per-target extraction workflow file.
	DefaultExtractionWorkflow = "scraper.yaml"

	// DefaultOutput is the artifact path.
	DefaultOutput = "pharmacies.json"

	// StdoutOutput as the output path writes the artifact to stdout.
	StdoutOutput = "-"

	// DefaultRateLimit is the pause between extraction requests.
	// Workflows call third-party retrieval and model APIs that throttle
	// aggressive clients.
	DefaultRateLimit = time.Second

	// DefaultConcurrency keeps extraction strictly sequential.
	DefaultConcurrency = 1

	// DefaultEngineEndpoint is where the workflow runner listens by default.
	DefaultEngineEndpoint = "http://127.0.0.1:8085/run"

	// DefaultEngineTimeout bounds a single engine invocation.
	DefaultEngineTimeout = 5 * time.Minute
)

// Summary formats printed after a run.
const (
	SummaryText     = "text"
	SummaryMarkdown = "markdown"
	SummaryJSON     = "json"
	SummaryNone     = "none"
)

// Config holds all configuration options for a crawl.
// It is populated from defaults, the config file and CLI flags, then passed
// down explicitly. It never holds credentials.
type Config struct {
	// DiscoveryWorkflow is the path of the discovery workflow definition.
	DiscoveryWorkflow string

	// ExtractionWorkflow is the path of the per-target workflow definition.
	ExtractionWorkflow string

	// Output is the artifact path, or StdoutOutput.
	Output string

	// RateLimit is the pause after each extraction attempt. Zero disables it.
	RateLimit time.Duration

	// ExtractionTimeout bounds each extraction call. Zero means no bound.
	ExtractionTimeout time.Duration

	// Concurrency is how many targets may be extracted at once.
	Concurrency int

	// Policy decides what an extraction failure does to the run.
	Policy model.FailurePolicy

	// EngineEndpoint is the workflow runner URL.
	EngineEndpoint string

	// EngineTimeout bounds a single engine HTTP request.
	EngineTimeout time.Duration

	// EngineProxy routes engine traffic through a SOCKS5 proxy ("host:port").
	EngineProxy string

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is an explicit config file path. When empty, the
	// .pharmacrawl file is searched in the current and home directories.
	ConfigFilePath string

	// SaveHistory records each run in the history database.
	SaveHistory bool

	// DBDir is the directory of the history database.
	DBDir string

	// Summary is the run summary format printed to stderr.
	Summary string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		DiscoveryWorkflow:  DefaultDiscoveryWorkflow,
		ExtractionWorkflow: DefaultExtractionWorkflow,
		Output:             DefaultOutput,
		RateLimit:          DefaultRateLimit,
		Concurrency:        DefaultConcurrency,
		Policy:             model.FailFast,
		EngineEndpoint:     DefaultEngineEndpoint,
		EngineTimeout:      DefaultEngineTimeout,
		SaveHistory:        true,
		DBDir:              XDGDataDir(),
		Summary:            SummaryText,
	}
}

// XDGDataDir returns the XDG data directory for pharmacrawl.
// On Linux: ~/.local/share/pharmacrawl
// On macOS: ~/Library/Application Support/pharmacrawl
// On Windows: %LOCALAPPDATA%\pharmacrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for pharmacrawl.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// WritesToStdout reports whether the artifact goes to stdout.
func (c *Config) WritesToStdout() bool {
	return c.Output == StdoutOutput
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if c.DiscoveryWorkflow == "" {
		return ErrNoDiscoveryWorkflow
	}
	if c.ExtractionWorkflow == "" {
		return ErrNoExtractionWorkflow
	}
	if c.Output == "" {
		return ErrNoOutput
	}
	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}
	if c.ExtractionTimeout < 0 {
		return ErrInvalidExtractionTimeout
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.EngineTimeout <= 0 {
		return ErrInvalidEngineTimeout
	}

	u, err := url.Parse(c.EngineEndpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidEngineEndpoint
	}

	switch c.Summary {
	case SummaryText, SummaryMarkdown, SummaryJSON, SummaryNone:
	default:
		return ErrUnknownSummaryFormat
	}

	if c.SaveHistory && c.DBDir == "" {
		return ErrNoDBDir
	}

	return nil
}
