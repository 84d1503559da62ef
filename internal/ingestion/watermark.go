package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/paperbirthdays/ingestion-service/internal/domain"
)

// AnnualUnits derives the catch-up units for the annual pass: every month-day
// partition already present in the store, re-queried for the years after the
// ledger watermark up to the current year.
//
// The watermark is the creation time of the most recent completed run; failed
// runs never advance it, so their years are re-covered here. Before any run
// has completed, the configured default watermark applies.
func (o *Orchestrator) AnnualUnits(ctx context.Context) ([]WorkUnit, error) {
	watermark, err := o.runs.LastCompletedAt(ctx, o.source.SourceType())
	if errors.Is(err, domain.ErrNotFound) {
		watermark = o.cfg.DefaultWatermark
	} else if err != nil {
		return nil, fmt.Errorf("resolve watermark: %w", err)
	}

	fromYear := watermark.Year() + 1
	toYear := o.now().Year()
	if fromYear > toYear {
		o.logger.Info().
			Time("watermark", watermark).
			Msg("annual pass already covers the current year, nothing to do")
		return nil, nil
	}

	monthDays, err := o.papers.DistinctMonthDays(ctx)
	if err != nil {
		return nil, fmt.Errorf("list month-day partitions: %w", err)
	}

	var units []WorkUnit
	for _, md := range monthDays {
		dayUnits, err := unitsForMonthDay(ModeAnnual, md, fromYear, toYear)
		if err != nil {
			return nil, fmt.Errorf("units for %s: %w", md, err)
		}
		units = append(units, dayUnits...)
	}

	o.logger.Info().
		Time("watermark", watermark).
		Int("from_year", fromYear).
		Int("to_year", toYear).
		Int("month_days", len(monthDays)).
		Int("units", len(units)).
		Msg("annual units derived")
	return units, nil
}
