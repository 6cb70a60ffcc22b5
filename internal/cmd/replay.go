package cmd

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/oppsuggest/internal/replay"
)

var replayCfg = replay.Config{}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Post fixtures to a running server and verify suggestions",
	Long: `Replay posts every *.json fixture in a directory to the server's /rank
endpoint concurrently and compares the suggested opportunity with the
fixture's expect_suggested field. Exits non-zero on any mismatch.

Examples:
  suggest-cli replay --dir fixtures
  suggest-cli replay --url http://localhost:9080 --dir fixtures --workers 16`,
	Args: cobra.NoArgs,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayCfg.BaseURL, "url", "http://localhost:9080", "Base URL of the service")
	replayCmd.Flags().StringVar(&replayCfg.Dir, "dir", "fixtures", "Fixture directory")
	replayCmd.Flags().IntVar(&replayCfg.Workers, "workers", runtime.NumCPU()*2, "Number of concurrent workers")
	replayCmd.Flags().DurationVar(&replayCfg.Timeout, "timeout", 30*time.Second, "HTTP request timeout")
	replayCmd.Flags().BoolVar(&replayCfg.SkipHealth, "skip-health", false, "Skip the /healthz check")
	replayCmd.Flags().BoolVarP(&replayCfg.Verbose, "verbose", "v", false, "Log every fixture outcome")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := replayCfg
	report, err := replay.Run(ctx, &cfg)
	if report != nil {
		s := report.Stats
		fmt.Fprintf(cmd.OutOrStdout(), "fixtures: %d  passed: %d  mismatched: %d  failed: %d  (%s)\n",
			s.Fixtures, s.Passed, s.Mismatched, s.Failed, s.Duration.Round(time.Millisecond))
	}
	return err
}
