package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/paperbirthdays/ingestion-service/internal/domain"
)

// Compile-time interface verification.
var (
	_ RunRepository         = (*PgRunRepository)(nil)
	_ FailedFetchRepository = (*PgFailedFetchRepository)(nil)
)

// PgRunRepository is a PostgreSQL implementation of RunRepository backed by
// the ingestion_logs table.
type PgRunRepository struct {
	db DBTX
}

// NewPgRunRepository creates a new PostgreSQL run ledger repository.
func NewPgRunRepository(db DBTX) *PgRunRepository {
	return &PgRunRepository{db: db}
}

// Record appends one finished run to the ledger.
func (r *PgRunRepository) Record(ctx context.Context, run *domain.IngestionRun) error {
	if run == nil {
		return domain.NewValidationError("run", "run cannot be nil")
	}
	if run.Unit == "" {
		return domain.NewValidationError("unit", "work unit is required")
	}

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	query := `
		INSERT INTO ingestion_logs (
			id, unit, source, papers_fetched, papers_new, papers_updated,
			status, error_message, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		run.ID,
		run.Unit,
		run.Source,
		run.PapersFetched,
		run.PapersNew,
		run.PapersUpdated,
		run.Status,
		run.ErrorMessage,
		run.Duration.Milliseconds(),
		time.Now().UTC(),
	).Scan(&run.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to record ingestion run: %w", err)
	}

	return nil
}

// LastCompletedAt returns the watermark: the creation time of the most
// recent completed run for the source. Failed runs never advance it.
func (r *PgRunRepository) LastCompletedAt(ctx context.Context, source domain.SourceType) (time.Time, error) {
	query := `
		SELECT MAX(created_at)
		FROM ingestion_logs
		WHERE source = $1 AND status = $2`

	var watermark *time.Time
	err := r.db.QueryRow(ctx, query, source, domain.RunStatusCompleted).Scan(&watermark)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, domain.NewNotFoundError("ingestion run", string(source))
		}
		return time.Time{}, fmt.Errorf("failed to read watermark: %w", err)
	}

	// MAX over zero rows yields SQL NULL, not an empty result set.
	if watermark == nil {
		return time.Time{}, domain.NewNotFoundError("ingestion run", string(source))
	}

	return *watermark, nil
}

// PgFailedFetchRepository is a PostgreSQL implementation of
// FailedFetchRepository backed by the failed_fetches table.
type PgFailedFetchRepository struct {
	db DBTX
}

// NewPgFailedFetchRepository creates a new failed fetch repository.
func NewPgFailedFetchRepository(db DBTX) *PgFailedFetchRepository {
	return &PgFailedFetchRepository{db: db}
}

// Record appends one failed fetch.
func (r *PgFailedFetchRepository) Record(ctx context.Context, fetch *domain.FailedFetch) error {
	if fetch == nil {
		return domain.NewValidationError("fetch", "failed fetch cannot be nil")
	}
	if fetch.Unit == "" {
		return domain.NewValidationError("unit", "work unit is required")
	}

	query := `
		INSERT INTO failed_fetches (unit, source, error_message, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		fetch.Unit,
		fetch.Source,
		fetch.ErrorMessage,
		time.Now().UTC(),
	).Scan(&fetch.ID, &fetch.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to record failed fetch: %w", err)
	}

	return nil
}
