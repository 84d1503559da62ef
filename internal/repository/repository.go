// Package repository provides data access interfaces and PostgreSQL
// implementations for the ingestion pipeline.
//
// # Repository Interfaces
//
//   - PaperRepository: deduplicated paper persistence and retention trimming
//   - RunRepository: the append-only ingestion run ledger and its watermark
//   - FailedFetchRepository: the record of fetches that exhausted retries
//
// # Thread Safety
//
// All implementations are safe for concurrent use by multiple goroutines.
// The underlying pgxpool handles connection pooling and synchronization.
//
// # Error Handling
//
// All methods return domain-specific errors from the domain package,
// wrapping database errors with fmt.Errorf and the %w verb. Common errors:
//
//   - domain.ErrNotFound: resource does not exist
//   - domain.ErrInvalidInput: invalid parameters provided
//
// # Transactions
//
// Repositories accept the DBTX interface, so they work against both the
// pool and a transaction from database.DB.WithTransaction.
package repository

import (
	"github.com/paperbirthdays/ingestion-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction
// contexts. Repository constructors accept DBTX so callers can pass a
// pgx.Tx for atomic multi-repository operations, or a pgxmock pool in
// tests.
type DBTX = database.DBTX
