package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nao1215/pharmacrawl/internal/model"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".pharmacrawl"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// EngineFile is the engine section of the configuration file.
type EngineFile struct {
	// Endpoint is the workflow runner URL.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Timeout bounds a single engine request, e.g. "5m".
	Timeout *time.Duration `yaml:"timeout,omitempty"`

	// Proxy is a SOCKS5 proxy address ("host:port").
	Proxy string `yaml:"proxy,omitempty"`
}

// File represents the structure of the .pharmacrawl configuration file.
// Every field is optional; unset fields keep the value already in Config.
type File struct {
	DiscoveryWorkflow  string `yaml:"discovery_workflow,omitempty"`
	ExtractionWorkflow string `yaml:"extraction_workflow,omitempty"`
	Output             string `yaml:"output,omitempty"`

	// RateLimit is the pause between extraction requests, e.g. "1s".
	RateLimit *time.Duration `yaml:"rate_limit,omitempty"`

	// ExtractionTimeout bounds each extraction call, e.g. "90s".
	ExtractionTimeout *time.Duration `yaml:"extraction_timeout,omitempty"`

	Concurrency int `yaml:"concurrency,omitempty"`

	// FailurePolicy is "fail-fast" or "skip".
	FailurePolicy string `yaml:"failure_policy,omitempty"`

	Engine EngineFile `yaml:"engine,omitempty"`

	// History enables the run history database.
	History *bool  `yaml:"history,omitempty"`
	DBDir   string `yaml:"db_dir,omitempty"`

	// Summary is text, markdown, json or none.
	Summary string `yaml:"summary,omitempty"`
}

// ApplyTo overrides cfg with every field set in the file.
func (f *File) ApplyTo(cfg *Config) error {
	if f.DiscoveryWorkflow != "" {
		cfg.DiscoveryWorkflow = f.DiscoveryWorkflow
	}
	if f.ExtractionWorkflow != "" {
		cfg.ExtractionWorkflow = f.ExtractionWorkflow
	}
	if f.Output != "" {
		cfg.Output = f.Output
	}
	if f.RateLimit != nil {
		cfg.RateLimit = *f.RateLimit
	}
	if f.ExtractionTimeout != nil {
		cfg.ExtractionTimeout = *f.ExtractionTimeout
	}
	if f.Concurrency != 0 {
		cfg.Concurrency = f.Concurrency
	}
	if f.FailurePolicy != "" {
		p, err := model.ParseFailurePolicy(f.FailurePolicy)
		if err != nil {
			return fmt.Errorf("failure_policy %q: %w", f.FailurePolicy, err)
		}
		cfg.Policy = p
	}
	if f.Engine.Endpoint != "" {
		cfg.EngineEndpoint = f.Engine.Endpoint
	}
	if f.Engine.Timeout != nil {
		cfg.EngineTimeout = *f.Engine.Timeout
	}
	if f.Engine.Proxy != "" {
		cfg.EngineProxy = f.Engine.Proxy
	}
	if f.History != nil {
		cfg.SaveHistory = *f.History
	}
	if f.DBDir != "" {
		cfg.DBDir = f.DBDir
	}
	if f.Summary != "" {
		cfg.Summary = f.Summary
	}
	return nil
}

// LoadConfigFile loads settings from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .pharmacrawl in the current directory
// 3. Look for .pharmacrawl in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
