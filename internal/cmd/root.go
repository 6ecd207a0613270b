// Package cmd wires the overseer CLI: submitting and executing a job's
// tasks, and the operational surface over the durable store (history,
// cleanup, storage stats).
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/harrison/overseer/internal/config"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

// rootOptions carry the persistent flags shared by all subcommands.
type rootOptions struct {
	configPath string
	dataDir    string
}

// load resolves the effective configuration: file values over defaults,
// then flag overrides.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	return cfg, nil
}

// NewRootCommand creates the root cobra command for overseer.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "overseer",
		Short: "Task lifecycle orchestrator for agent-driven repository work",
		Long: `Overseer takes a repository reference, executes its decomposed tasks by
delegating each to an external agent process with bounded concurrency, and
keeps a durable record of every job's progress and results.`,
		Version:      Version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "overseer.yaml", "path to the configuration file")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "override the data directory")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewCleanupCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))

	return cmd
}
