package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(dateCmd)
}

var dateCmd = &cobra.Command{
	Use:   "date <MM-DD>",
	Short: "Ingest papers published on one month-day",
	Long: `Ingest papers published on a specific month-day across the year range.

Examples:
  paperdays-ingest date 01-15
  paperdays-ingest date 02-29 --from-year 2000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMonthDay(cmd.Context(), args[0])
	},
}
