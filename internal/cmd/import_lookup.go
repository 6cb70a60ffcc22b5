package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/oppsuggest/internal/adapters/lookup"
)

var (
	importDataDir string
	importSQLite  string
)

var importLookupCmd = &cobra.Command{
	Use:   "import-lookup",
	Short: "Copy CSV lookup data into a SQLite store",
	Long: `Read users.csv, products.csv and users_products.csv from a directory and
upsert them into a SQLite lookup database, creating it when missing.

Examples:
  suggest-cli import-lookup --data-dir ./data --sqlite ./lookup.db`,
	Args: cobra.NoArgs,
	RunE: runImportLookup,
}

func init() {
	importLookupCmd.Flags().StringVar(&importDataDir, "data-dir", "./data", "Directory holding the CSV files")
	importLookupCmd.Flags().StringVar(&importSQLite, "sqlite", "./lookup.db", "SQLite database path")
	rootCmd.AddCommand(importLookupCmd)
}

func runImportLookup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	src, err := lookup.NewCSVStore(importDataDir)
	if err != nil {
		return fmt.Errorf("read csv lookup: %w", err)
	}
	dst, err := lookup.NewSQLiteStore(importSQLite)
	if err != nil {
		return fmt.Errorf("open sqlite lookup: %w", err)
	}
	defer dst.Close()

	n, err := dst.Import(ctx, src)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d users into %s\n", n, importSQLite)
	return nil
}
