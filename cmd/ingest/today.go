package main

import (
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(todayCmd)
}

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Ingest papers published on today's month-day",
	Long: `Ingest papers published on today's month-day across the year range.

This is the daily pass: for each year in [--from-year, --to-year] it pages
through the search endpoint for that exact publication date.

Examples:
  paperdays-ingest today
  paperdays-ingest today --from-year 1990`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMonthDay(cmd.Context(), time.Now().Format("01-02"))
	},
}
