package ingestion

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/paperbirthdays/ingestion-service/internal/observability"
	"github.com/paperbirthdays/ingestion-service/internal/repository"
)

// trimAdvisoryLockKey serializes trimming across processes of the same
// deployment. The value is arbitrary but must be stable.
const trimAdvisoryLockKey int64 = 0x70626474 // "pbdt"

// AdvisoryLocker acquires and releases Postgres advisory locks.
type AdvisoryLocker interface {
	AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, key int64) error
}

// Trimmer enforces the retention policy: each month-day partition keeps its
// keepTop most-cited papers and the rest are deleted, followed by a vacuum.
// Trimming is best run after an ingestion pass, never concurrently with
// another trim.
type Trimmer struct {
	papers  repository.PaperRepository
	locker  AdvisoryLocker
	metrics *observability.Metrics
	logger  zerolog.Logger
	keepTop int
}

// NewTrimmer creates a Trimmer. keepTop must be positive.
func NewTrimmer(papers repository.PaperRepository, locker AdvisoryLocker, metrics *observability.Metrics, logger zerolog.Logger, keepTop int) (*Trimmer, error) {
	if papers == nil {
		return nil, fmt.Errorf("paper repository is required")
	}
	if locker == nil {
		return nil, fmt.Errorf("advisory locker is required")
	}
	if keepTop <= 0 {
		return nil, fmt.Errorf("keepTop must be positive, got %d", keepTop)
	}
	return &Trimmer{
		papers:  papers,
		locker:  locker,
		metrics: metrics,
		logger:  logger,
		keepTop: keepTop,
	}, nil
}

// Trim deletes everything below the per-partition retention cap and vacuums
// the table. It returns the number of rows deleted. When another process
// already holds the trim lock, Trim is a no-op returning 0.
func (t *Trimmer) Trim(ctx context.Context) (int64, error) {
	acquired, err := t.locker.AcquireAdvisoryLock(ctx, trimAdvisoryLockKey)
	if err != nil {
		return 0, fmt.Errorf("acquire trim lock: %w", err)
	}
	if !acquired {
		t.logger.Info().Msg("trim already in progress elsewhere, skipping")
		return 0, nil
	}
	defer func() {
		if err := t.locker.ReleaseAdvisoryLock(ctx, trimAdvisoryLockKey); err != nil {
			t.logger.Warn().Err(err).Msg("failed to release trim lock")
		}
	}()

	deleted, err := t.papers.TrimToTopPerDay(ctx, t.keepTop)
	if err != nil {
		return 0, fmt.Errorf("trim to top %d per day: %w", t.keepTop, err)
	}
	if t.metrics != nil {
		t.metrics.RecordPapersTrimmed(deleted)
	}
	t.logger.Info().Int64("deleted", deleted).Int("keep_top", t.keepTop).Msg("retention trim finished")

	if err := t.papers.Vacuum(ctx); err != nil {
		return deleted, fmt.Errorf("vacuum after trim: %w", err)
	}
	return deleted, nil
}
