// Package main provides the paperdays-ingest CLI, the entry point for all
// ingestion passes against the papers store.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	fromYear int
	toYear   int
)

var rootCmd = &cobra.Command{
	Use:   "paperdays-ingest",
	Short: "Ingest Semantic Scholar paper metadata into the papers store",
	Long: `paperdays-ingest retrieves paper metadata from Semantic Scholar and
upserts it into the deduplicated papers table.

Date passes (today, date, all, annual) page through the Graph API search
endpoint one exact publication date at a time. The bulk pass streams gzip
NDJSON shards from the Datasets API. Re-running any pass is safe: known
papers get their citation counts refreshed instead of duplicate rows.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().IntVar(&fromYear, "from-year", 1950,
		"First publication year covered by date passes")
	rootCmd.PersistentFlags().IntVar(&toYear, "to-year", 0,
		"Last publication year covered by date passes (0 = current year)")
}

func main() {
	// Load .env before viper reads the environment; missing files are fine.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
