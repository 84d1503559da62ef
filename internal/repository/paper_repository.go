package repository

import (
	"context"

	"github.com/paperbirthdays/ingestion-service/internal/domain"
)

// UpsertOutcome reports whether an upsert inserted a new row or refreshed an
// existing one.
type UpsertOutcome int

// Upsert outcomes.
const (
	OutcomeInserted UpsertOutcome = iota
	OutcomeUpdated
)

// String returns the outcome name for logging.
func (o UpsertOutcome) String() string {
	if o == OutcomeInserted {
		return "inserted"
	}
	return "updated"
}

// BatchResult summarizes one batched upsert flush.
type BatchResult struct {
	// Inserted is the number of rows that did not previously exist.
	Inserted int

	// Updated is the number of rows refreshed in place.
	Updated int
}

// Total returns the number of rows written.
func (r BatchResult) Total() int {
	return r.Inserted + r.Updated
}

// PaperRepository handles deduplicated paper persistence. paper_id is the
// dedup key: re-ingesting a known paper refreshes its volatile fields
// (citation counts) and never creates a duplicate row.
type PaperRepository interface {
	// Upsert inserts the paper or refreshes the existing row with the same
	// paper_id. The returned outcome distinguishes a fresh insert from a
	// refresh of an existing row.
	// Returns domain.ErrInvalidInput if the paper has no paper ID.
	Upsert(ctx context.Context, paper *domain.Paper) (UpsertOutcome, error)

	// BatchUpsert upserts many papers in a single network roundtrip.
	// Papers are written in input order; a duplicate paper_id within the
	// batch resolves to the last occurrence.
	BatchUpsert(ctx context.Context, papers []*domain.Paper) (BatchResult, error)

	// GetByID retrieves a paper by its source paper ID.
	// Returns domain.ErrNotFound if no matching paper exists.
	GetByID(ctx context.Context, paperID string) (*domain.Paper, error)

	// CountByMonthDay returns how many papers are stored for one MM-DD
	// partition.
	CountByMonthDay(ctx context.Context, monthDay string) (int64, error)

	// DistinctMonthDays returns every MM-DD value present in the papers
	// table, ordered ascending.
	DistinctMonthDays(ctx context.Context) ([]string, error)

	// TrimToTopPerDay deletes all but the keepTop most-cited papers for
	// each MM-DD partition, breaking citation ties by paper_id so repeated
	// trims are deterministic. Returns the number of rows deleted.
	TrimToTopPerDay(ctx context.Context, keepTop int) (int64, error)

	// Vacuum reclaims space after a trim. Must run outside a transaction.
	Vacuum(ctx context.Context) error
}
