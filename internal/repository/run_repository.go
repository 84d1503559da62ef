package repository

import (
	"context"
	"time"

	"github.com/paperbirthdays/ingestion-service/internal/domain"
)

// RunRepository manages the append-only ingestion run ledger. Ledger rows
// are written once when a unit of work finishes and never mutated.
type RunRepository interface {
	// Record appends one finished run to the ledger and fills in the
	// generated ID and creation time.
	Record(ctx context.Context, run *domain.IngestionRun) error

	// LastCompletedAt returns the creation time of the most recent
	// completed run for the source. Failed runs do not advance the
	// watermark, so their work is re-covered on the next pass.
	// Returns domain.ErrNotFound when no run has ever completed.
	LastCompletedAt(ctx context.Context, source domain.SourceType) (time.Time, error)
}

// FailedFetchRepository records retrieval attempts that exhausted all
// retries, for later inspection and manual re-runs.
type FailedFetchRepository interface {
	// Record appends one failed fetch.
	Record(ctx context.Context, fetch *domain.FailedFetch) error
}
