package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for pharmacrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pharmacrawl",
		Short: "Crawl pharmacy websites into structured JSON records",
		Long: `pharmacrawl runs a discovery workflow to find pharmacy store pages, then runs
an extraction workflow on each page, pacing requests, and writes every
extracted record to a single JSON file.

Workflows are executed by an external workflow runner (--engine). The API
keys the workflows need are read from JINA_API_KEY and OPENROUTER_API_KEY,
either in the environment or in a .env file.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
