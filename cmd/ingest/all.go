package main

import (
	"github.com/spf13/cobra"

	"github.com/paperbirthdays/ingestion-service/internal/ingestion"
)

var allTrim bool

func init() {
	allCmd.Flags().BoolVar(&allTrim, "trim", false, "Trim each partition to the retention cap afterwards")
	rootCmd.AddCommand(allCmd)
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Ingest papers for every month-day",
	Long: `Ingest papers for all 366 month-day partitions across the year range.

This is the backfill pass. It generates one unit per (month-day, year) pair,
so expect a long run bounded by the source's rate limit.

Examples:
  paperdays-ingest all --from-year 1980 --trim`,
	Args: cobra.NoArgs,
	RunE: runAll,
}

func runAll(cmd *cobra.Command, _ []string) error {
	ctx, stop := withSignals(cmd.Context())
	defer stop()

	from, to, err := yearRange()
	if err != nil {
		return err
	}

	var units []ingestion.WorkUnit
	for _, md := range ingestion.AllMonthDays() {
		dayUnits, err := ingestion.UnitsForMonthDay(md, from, to)
		if err != nil {
			return err
		}
		units = append(units, dayUnits...)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	return executeUnits(ctx, a, units, allTrim)
}
