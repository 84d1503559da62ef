package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(trimCmd)
}

var trimCmd = &cobra.Command{
	Use:   "trim",
	Short: "Trim each month-day partition to the retention cap",
	Long: `Delete everything below the per-partition retention cap (the
keep_top_per_day most-cited papers for each month-day, ties broken by paper
ID) and vacuum the table.

Only one trim runs at a time per deployment; a second invocation while a
trim is in progress is a no-op.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := withSignals(cmd.Context())
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		_, err = a.trimmer.Trim(ctx)
		return err
	},
}
