package main

import (
	"github.com/spf13/cobra"
)

var annualTrim bool

func init() {
	annualCmd.Flags().BoolVar(&annualTrim, "trim", false, "Trim each partition to the retention cap afterwards")
	rootCmd.AddCommand(annualCmd)
}

var annualCmd = &cobra.Command{
	Use:   "annual",
	Short: "Catch up on years after the ledger watermark",
	Long: `Re-ingest every month-day already present in the store for the years
after the run-ledger watermark.

The watermark is the creation time of the most recent completed run; failed
runs never advance it. Run this once a year (or after downtime) to pick up
papers published since the last completed pass.`,
	Args: cobra.NoArgs,
	RunE: runAnnual,
}

func runAnnual(cmd *cobra.Command, _ []string) error {
	ctx, stop := withSignals(cmd.Context())
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	units, err := a.orchestrator.AnnualUnits(ctx)
	if err != nil {
		return err
	}
	return executeUnits(ctx, a, units, annualTrim)
}
