package main

import (
	"github.com/spf13/cobra"

	"github.com/kdimtricp/brokeshot/internal/config"
	"github.com/kdimtricp/brokeshot/internal/logging"
)

// options are shared by every subcommand and filled in PersistentPreRunE.
type options struct {
	configPath string
	logLevel   string
	jsonLogs   bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "brokeshot",
		Short:        "Score basketball jumpshots with the BrokeShot analysis service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.LogLevel = opts.logLevel
			}
			if err := logging.Init(cfg.LogLevel, cmd.ErrOrStderr(), !opts.jsonLogs); err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&opts.jsonLogs, "json-logs", false, "Write logs as JSON lines")

	root.AddCommand(
		newAnalyzeCmd(opts),
		newHistoryCmd(opts),
		newServeCmd(opts),
		newWatchCmd(opts),
		newMigrateCmd(opts),
		newHealthCmd(opts),
	)

	return root
}
