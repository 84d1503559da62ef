package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/paperbirthdays/ingestion-service/internal/ingestion"
)

// yearRange resolves the --from-year/--to-year flags, defaulting the upper
// bound to the current year.
func yearRange() (int, int, error) {
	to := toYear
	if to == 0 {
		to = time.Now().Year()
	}
	if fromYear > to {
		return 0, 0, fmt.Errorf("year range [%d, %d] is empty", fromYear, to)
	}
	return fromYear, to, nil
}

// withSignals derives a context cancelled on SIGINT/SIGTERM so an
// interrupted pass finishes its current batch and records its ledger rows.
func withSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

// executeUnits runs the units and optionally trims afterwards. The
// orchestrator returns an error only when no unit succeeded, which is the
// only case where the pass exits non-zero.
func executeUnits(ctx context.Context, a *app, units []ingestion.WorkUnit, trim bool) error {
	if len(units) == 0 {
		a.logger.Info().Msg("nothing to ingest")
		return nil
	}

	if _, err := a.orchestrator.Run(ctx, units); err != nil {
		return err
	}
	if trim {
		if _, err := a.trimmer.Trim(ctx); err != nil {
			return fmt.Errorf("trim after ingestion: %w", err)
		}
	}
	return nil
}

// runMonthDay ingests one MM-DD partition across the configured year range.
func runMonthDay(ctx context.Context, monthDay string) error {
	ctx, stop := withSignals(ctx)
	defer stop()

	from, to, err := yearRange()
	if err != nil {
		return err
	}
	units, err := ingestion.UnitsForMonthDay(monthDay, from, to)
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	return executeUnits(ctx, a, units, false)
}
