// Package cmd implements the evalforge command line interface.
//
// The command tree mirrors the evaluation workflow: generate turns
// documents into a golden dataset, index loads the dataset's contexts
// into the vector store, evaluate retrieves and scores against them,
// and runs revisits stored reports. serve-mcp exposes the same
// operations to MCP clients over stdio.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/evalforge/evalforge/internal/config"
	"github.com/evalforge/evalforge/internal/log"
)

// defaultCollection is the vector store collection used when a command's
// --collection flag is left unset.
const defaultCollection = "evalforge"

// rootOptions carries the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	jsonLogs   bool
}

// NewRootCmd assembles the evalforge command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "evalforge",
		Short: "Synthetic golden generation and RAG evaluation",
		Long: `Evalforge turns documents into evaluation datasets and scores
retrieval pipelines against them.

A typical session:

  evalforge generate docs/manual.md -o goldens.json   # documents -> goldens
  evalforge index goldens.json                        # goldens -> vector store
  evalforge evaluate goldens.json                     # retrieve, judge, report

Configuration is read from ~/.evalforge/config.yaml (or --config) with
environment variable overrides.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default ~/.evalforge/config.yaml)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides config)")
	pf.BoolVar(&opts.jsonLogs, "json-logs", false, "emit logs as JSON (overrides config)")

	cmd.AddCommand(
		NewGenerateCmd(opts),
		NewIndexCmd(opts),
		NewEvaluateCmd(opts),
		NewRunsCmd(opts),
		NewMCPCmd(opts),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// load resolves configuration and builds the process logger. Persistent
// flag values win over the config file and environment. The logger also
// becomes slog's default so library log lines follow the same level.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFrom(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if cmd.Flags().Changed("json-logs") {
		cfg.JSONLogs = o.jsonLogs
	}

	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), JSON: cfg.JSONLogs})
	slog.SetDefault(logger)
	return cfg, logger, nil
}
