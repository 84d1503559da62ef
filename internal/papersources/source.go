// Package papersources provides clients for retrieving paper metadata from
// external scholarly databases.
//
// Each provider implements the PaperSource capability interface for paginated
// date-filtered retrieval; providers that also publish periodic bulk exports
// additionally implement BulkSource for streamed shard processing. The
// ingestion orchestrator composes either capability without knowing the
// provider behind it.
package papersources

import (
	"context"
	"time"

	"github.com/paperbirthdays/ingestion-service/internal/domain"
)

// DateQuery asks for one page of papers published on an exact calendar date.
type DateQuery struct {
	// Date is the exact publication date to filter on, in the provider's
	// expected form (YYYY-MM-DD).
	Date string

	// Limit is the page size. A value of 0 uses the provider's default.
	Limit int

	// Offset is the pagination cursor position.
	Offset int
}

// Page is one page of raw records from a paginated retrieval.
type Page struct {
	// Records are the raw records in server-returned order. Each record is
	// tagged with its originating source and carries the server-reported
	// publication date string unmodified.
	Records []domain.RawPaper

	// Total is the server-reported total result count for the query.
	Total int

	// HasMore indicates the server offered a further page.
	HasMore bool

	// NextOffset is the cursor for the next page, meaningful when HasMore.
	NextOffset int

	// FetchDuration is the time taken for the request and parsing.
	FetchDuration time.Duration
}

// PaperSource is the paginated retrieval capability.
//
// Implementations must respect context cancellation, apply the shared rate
// budget before every request, and surface a pagination ceiling as
// domain.ErrPaginationCeiling so callers can treat it as end-of-data.
type PaperSource interface {
	// FetchPage retrieves one page of papers published on the query date.
	FetchPage(ctx context.Context, q DateQuery) (*Page, error)

	// SourceType returns the provider identifier records are tagged with.
	SourceType() domain.SourceType

	// Name returns a human-readable provider name for logging.
	Name() string
}

// BulkSource is the streamed bulk-export capability.
type BulkSource interface {
	// ListShards resolves the provider's current bulk release into the list
	// of shard download URLs.
	ListShards(ctx context.Context) ([]string, error)

	// StreamShard downloads one compressed line-delimited shard and invokes
	// fn once per decoded record, without materializing the shard in memory.
	// A non-nil error from fn aborts the stream and is returned unwrapped.
	StreamShard(ctx context.Context, url string, fn func(domain.RawPaper) error) error

	// SourceType returns the provider identifier records are tagged with.
	SourceType() domain.SourceType
}
