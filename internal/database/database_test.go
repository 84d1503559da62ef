package database

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperbirthdays/ingestion-service/internal/config"
)

// mockDBTX is a mock implementation of DBTX for interface verification.
type mockDBTX struct{}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *mockDBTX) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return nil
}

func (m *mockDBTX) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

// Both pool-backed DB and plain mocks must satisfy DBTX so repositories can
// run against either.
var _ DBTX = (*mockDBTX)(nil)

func TestNew_InvalidConfig(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	logger := zerolog.Nop()

	t.Run("unreachable host returns error", func(t *testing.T) {
		// 192.0.2.1 is TEST-NET-1 (RFC 5737), guaranteed unroutable.
		cfg := testDatabaseConfig()
		cfg.Host = "192.0.2.1"
		cfg.ConnectTimeout = 2 * time.Second

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		db, err := New(ctx, cfg, logger)
		require.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("malformed DSN returns error", func(t *testing.T) {
		cfg := testDatabaseConfig()
		cfg.Host = "host with spaces"

		db, err := New(context.Background(), cfg, logger)
		require.Error(t, err)
		assert.Nil(t, db)
	})
}

// TestDB_WithTransaction exercises commit and rollback against a real
// database.
func TestDB_WithTransaction(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, "SELECT 1")
			return err
		})
		assert.NoError(t, err)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		sentinel := assert.AnError
		err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)
	})
}

func TestDB_AdvisoryLock(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	const key = int64(424242)

	t.Run("acquire and release cycle repeatably", func(t *testing.T) {
		// Unlock must run on the session that locked; a leaked lock would
		// make every re-acquire after the first cycle fail.
		for i := 0; i < 3; i++ {
			acquired, err := db.AcquireAdvisoryLock(ctx, key)
			require.NoError(t, err)
			require.True(t, acquired, "cycle %d", i)
			require.NoError(t, db.ReleaseAdvisoryLock(ctx, key))
		}
	})

	t.Run("excludes other sessions while held", func(t *testing.T) {
		other := setupTestDB(t)
		defer other.Close()

		acquired, err := db.AcquireAdvisoryLock(ctx, key)
		require.NoError(t, err)
		require.True(t, acquired)

		contended, err := other.AcquireAdvisoryLock(ctx, key)
		require.NoError(t, err)
		assert.False(t, contended)

		require.NoError(t, db.ReleaseAdvisoryLock(ctx, key))

		reacquired, err := other.AcquireAdvisoryLock(ctx, key)
		require.NoError(t, err)
		assert.True(t, reacquired)
		require.NoError(t, other.ReleaseAdvisoryLock(ctx, key))
	})

	t.Run("re-acquire of a held key reports contention", func(t *testing.T) {
		acquired, err := db.AcquireAdvisoryLock(ctx, key)
		require.NoError(t, err)
		require.True(t, acquired)

		again, err := db.AcquireAdvisoryLock(ctx, key)
		require.NoError(t, err)
		assert.False(t, again)

		require.NoError(t, db.ReleaseAdvisoryLock(ctx, key))
	})

	t.Run("releasing an unheld key is a no-op", func(t *testing.T) {
		assert.NoError(t, db.ReleaseAdvisoryLock(ctx, int64(999999)))
	})
}

// testDatabaseConfig returns a config pointing at the local test database.
func testDatabaseConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Host:              "localhost",
		Port:              5432,
		Name:              "paperdays",
		User:              "paperdays",
		Password:          "password",
		SSLMode:           "disable",
		MaxConns:          5,
		MinConns:          1,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: 30 * time.Second,
		ConnectTimeout:    10 * time.Second,
	}
}

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(context.Background(), testDatabaseConfig(), zerolog.Nop())
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
	}

	return db
}
