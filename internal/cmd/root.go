// Package cmd implements the suggest-cli commands.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/oppsuggest/pkg/logger"
)

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "suggest-cli",
	Short: "offline ranking, fixture replay and lookup tooling",
	Long: `suggest-cli works with the opportunity suggestion engine outside the server:
  - rank fixtures offline with the deterministic scorer
  - replay fixtures against a running server and verify suggestions
  - import CSV lookup data into SQLite`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.InitWithFormat(logFormat, os.Stderr); err != nil {
			return err
		}
		return logger.SetLevelString(logLevel)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logger.FormatText, "Log format: text or json")
}
