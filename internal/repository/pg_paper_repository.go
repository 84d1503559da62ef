package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/paperbirthdays/ingestion-service/internal/domain"
)

// Compile-time interface verification.
var _ PaperRepository = (*PgPaperRepository)(nil)

// paperColumns is the full column list shared by insert and select queries.
const paperColumns = `paper_id, source, title, authors, author_count,
		publication_date, publication_month_day, year, venue, field,
		fields_of_study, citation_count, influential_citation_count,
		reference_count, doi, url, pdf_url, is_open_access,
		created_at, updated_at`

// PgPaperRepository is a PostgreSQL implementation of PaperRepository.
type PgPaperRepository struct {
	db          DBTX
	upsertQuery string
}

// NewPgPaperRepository creates a new PostgreSQL paper repository.
//
// Citation counts always refresh on conflict. Author lists are large and
// effectively immutable after publication, so they refresh only when
// refreshAuthors is set.
func NewPgPaperRepository(db DBTX, refreshAuthors bool) *PgPaperRepository {
	return &PgPaperRepository{
		db:          db,
		upsertQuery: buildUpsertQuery(refreshAuthors),
	}
}

// buildUpsertQuery assembles the idempotent upsert. The xmax system column
// is zero only for freshly inserted row versions, which distinguishes an
// insert from a conflict-update without a second query.
func buildUpsertQuery(refreshAuthors bool) string {
	authorRefresh := ""
	if refreshAuthors {
		authorRefresh = `
			authors = EXCLUDED.authors,
			author_count = EXCLUDED.author_count,`
	}

	return fmt.Sprintf(`
		INSERT INTO papers (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (paper_id) DO UPDATE SET
			citation_count = EXCLUDED.citation_count,
			influential_citation_count = EXCLUDED.influential_citation_count,
			reference_count = EXCLUDED.reference_count,%s
			updated_at = NOW()
		RETURNING (xmax = 0) AS inserted, created_at, updated_at`, paperColumns, authorRefresh)
}

// Upsert inserts the paper or refreshes the existing row with the same
// paper_id.
func (r *PgPaperRepository) Upsert(ctx context.Context, paper *domain.Paper) (UpsertOutcome, error) {
	if paper == nil {
		return 0, domain.NewValidationError("paper", "paper cannot be nil")
	}
	if paper.PaperID == "" {
		return 0, domain.NewValidationError("paper_id", "paper ID is required")
	}

	args, err := upsertArgs(paper)
	if err != nil {
		return 0, err
	}

	var inserted bool
	err = r.db.QueryRow(ctx, r.upsertQuery, args...).Scan(&inserted, &paper.CreatedAt, &paper.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert paper: %w", err)
	}

	if inserted {
		return OutcomeInserted, nil
	}
	return OutcomeUpdated, nil
}

// BatchUpsert upserts many papers in a single network roundtrip using
// pgx.Batch.
func (r *PgPaperRepository) BatchUpsert(ctx context.Context, papers []*domain.Paper) (BatchResult, error) {
	if len(papers) == 0 {
		return BatchResult{}, nil
	}

	for i, paper := range papers {
		if paper == nil {
			return BatchResult{}, domain.NewValidationError("paper", fmt.Sprintf("paper at index %d is nil", i))
		}
		if paper.PaperID == "" {
			return BatchResult{}, domain.NewValidationError("paper_id", fmt.Sprintf("paper at index %d has no paper ID", i))
		}
	}

	batch := &pgx.Batch{}
	for _, paper := range papers {
		args, err := upsertArgs(paper)
		if err != nil {
			return BatchResult{}, err
		}
		batch.Queue(r.upsertQuery, args...)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	var result BatchResult
	for i, paper := range papers {
		var inserted bool
		if err := br.QueryRow().Scan(&inserted, &paper.CreatedAt, &paper.UpdatedAt); err != nil {
			return BatchResult{}, fmt.Errorf("failed to upsert paper at index %d: %w", i, err)
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	return result, nil
}

// GetByID retrieves a paper by its source paper ID.
func (r *PgPaperRepository) GetByID(ctx context.Context, paperID string) (*domain.Paper, error) {
	if paperID == "" {
		return nil, domain.NewValidationError("paper_id", "paper ID is required")
	}

	query := fmt.Sprintf(`SELECT %s FROM papers WHERE paper_id = $1`, paperColumns)

	row := r.db.QueryRow(ctx, query, paperID)
	paper, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", paperID)
		}
		return nil, fmt.Errorf("failed to get paper by ID: %w", err)
	}

	return paper, nil
}

// CountByMonthDay returns how many papers are stored for one MM-DD
// partition.
func (r *PgPaperRepository) CountByMonthDay(ctx context.Context, monthDay string) (int64, error) {
	query := `SELECT COUNT(*) FROM papers WHERE publication_month_day = $1`

	var count int64
	if err := r.db.QueryRow(ctx, query, monthDay).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count papers for %s: %w", monthDay, err)
	}

	return count, nil
}

// DistinctMonthDays returns every MM-DD value present in the papers table.
func (r *PgPaperRepository) DistinctMonthDays(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT publication_month_day
		FROM papers
		ORDER BY publication_month_day`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list month-days: %w", err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("failed to scan month-day: %w", err)
		}
		days = append(days, day)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating month-days: %w", err)
	}

	return days, nil
}

// TrimToTopPerDay deletes all but the keepTop most-cited papers for each
// MM-DD partition. Ties are broken by paper_id so a re-run of the trim on
// unchanged data deletes nothing.
func (r *PgPaperRepository) TrimToTopPerDay(ctx context.Context, keepTop int) (int64, error) {
	if keepTop <= 0 {
		return 0, domain.NewValidationError("keep_top", "keep count must be positive")
	}

	query := `
		WITH ranked AS (
			SELECT paper_id,
				ROW_NUMBER() OVER (
					PARTITION BY publication_month_day
					ORDER BY citation_count DESC, paper_id ASC
				) AS position
			FROM papers
		)
		DELETE FROM papers
		WHERE paper_id IN (
			SELECT paper_id FROM ranked WHERE position > $1
		)`

	result, err := r.db.Exec(ctx, query, keepTop)
	if err != nil {
		return 0, fmt.Errorf("failed to trim papers: %w", err)
	}

	return result.RowsAffected(), nil
}

// Vacuum reclaims space after a trim. VACUUM cannot run inside a
// transaction block, so this must be called with the pool, never a tx.
func (r *PgPaperRepository) Vacuum(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, "VACUUM ANALYZE papers"); err != nil {
		return fmt.Errorf("failed to vacuum papers: %w", err)
	}
	return nil
}

// upsertArgs flattens a paper into the positional argument list of the
// upsert query.
func upsertArgs(paper *domain.Paper) ([]interface{}, error) {
	authorsJSON, err := json.Marshal(paper.Authors)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal authors: %w", err)
	}

	fieldsJSON, err := json.Marshal(paper.FieldsOfStudy)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields of study: %w", err)
	}

	now := time.Now().UTC()

	return []interface{}{
		paper.PaperID,
		paper.Source,
		paper.Title,
		authorsJSON,
		paper.AuthorCount,
		paper.PublicationDate,
		paper.PublicationMonthDay,
		paper.Year,
		paper.Venue,
		paper.Field,
		fieldsJSON,
		paper.CitationCount,
		paper.InfluentialCitationCount,
		paper.ReferenceCount,
		paper.DOI,
		paper.URL,
		paper.PDFURL,
		paper.IsOpenAccess,
		now,
		now,
	}, nil
}

// paperScanDest holds the destination pointers for scanning a paper row.
type paperScanDest struct {
	paper       domain.Paper
	authorsJSON []byte
	fieldsJSON  []byte
}

// destinations returns the slice of pointers for Scan operations, in
// paperColumns order.
func (d *paperScanDest) destinations() []interface{} {
	return []interface{}{
		&d.paper.PaperID, &d.paper.Source, &d.paper.Title, &d.authorsJSON, &d.paper.AuthorCount,
		&d.paper.PublicationDate, &d.paper.PublicationMonthDay, &d.paper.Year, &d.paper.Venue, &d.paper.Field,
		&d.fieldsJSON, &d.paper.CitationCount, &d.paper.InfluentialCitationCount,
		&d.paper.ReferenceCount, &d.paper.DOI, &d.paper.URL, &d.paper.PDFURL, &d.paper.IsOpenAccess,
		&d.paper.CreatedAt, &d.paper.UpdatedAt,
	}
}

// finalize unmarshals the JSON columns after a scan.
func (d *paperScanDest) finalize() (*domain.Paper, error) {
	if len(d.authorsJSON) > 0 {
		if err := json.Unmarshal(d.authorsJSON, &d.paper.Authors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal authors: %w", err)
		}
	}

	if len(d.fieldsJSON) > 0 {
		if err := json.Unmarshal(d.fieldsJSON, &d.paper.FieldsOfStudy); err != nil {
			return nil, fmt.Errorf("failed to unmarshal fields of study: %w", err)
		}
	}

	return &d.paper, nil
}

// scanPaper scans a single row into a Paper.
func scanPaper(row pgx.Row) (*domain.Paper, error) {
	var dest paperScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
