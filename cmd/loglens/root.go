package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCommand() *cobra.Command {
	var verbose bool
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "loglens",
		Short: "Batch log analysis with inference",
		Long: `loglens groups log lines into batches, extracts recurring patterns and
asks an inference provider to explain each batch.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
	cmd.PersistentFlags().StringP("config", "c", "", "YAML file with analyze flag defaults")

	cmd.AddCommand(newAnalyzeCommand(v), newVersionCommand())
	return cmd
}
