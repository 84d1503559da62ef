// Package database provides PostgreSQL connectivity, transactions, advisory
// locks and schema migrations for the ingestion pipeline.
package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/paperbirthdays/ingestion-service/internal/config"
)

// DB wraps the pgx connection pool with the pipeline's access patterns:
// plain queries, batched upserts, transactions and advisory locks.
type DB struct {
	pool   *pgxpool.Pool
	config *config.DatabaseConfig
	logger zerolog.Logger

	// Advisory locks are session-level, so each held key pins the pooled
	// connection that took it until release.
	mu        sync.Mutex
	lockConns map[int64]*pgxpool.Conn
}

// DBTX is satisfied by *DB, *pgxpool.Pool and pgx.Tx alike, so repositories
// run unchanged inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

var _ DBTX = (*DB)(nil)

// New opens a connection pool and verifies it with a ping. An unreachable
// store is fatal at startup rather than at first use.
func New(ctx context.Context, cfg *config.DatabaseConfig, logger zerolog.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Int32("max_conns", cfg.MaxConns).
		Msg("papers store connected")

	return &DB{
		pool:      pool,
		config:    cfg,
		logger:    logger,
		lockConns: make(map[int64]*pgxpool.Conn),
	}, nil
}

// Pool exposes the underlying pool for callers that need it directly
// (the migrator, VACUUM).
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Close returns any lock-pinned connections and shuts the pool down. Closing
// the sessions releases their advisory locks server-side.
func (db *DB) Close() {
	db.mu.Lock()
	for key, conn := range db.lockConns {
		conn.Release()
		delete(db.lockConns, key)
	}
	db.mu.Unlock()

	if db.pool != nil {
		db.pool.Close()
		db.logger.Info().Msg("papers store connection closed")
	}
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Stats returns pool statistics.
func (db *DB) Stats() *pgxpool.Stat {
	return db.pool.Stat()
}

// WithTransaction runs fn inside a transaction, committing on success and
// rolling back on error or panic (the panic is re-raised after rollback).
func (db *DB) WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				db.logger.Error().
					Err(rbErr).
					Interface("panic", p).
					Msg("rollback after panic failed")
			}
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("transaction error: %w (rollback error: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// The DBTX methods delegate to the pool.

func (db *DB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return db.pool.Exec(ctx, sql, args...)
}

func (db *DB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return db.pool.QueryRow(ctx, sql, args...)
}

func (db *DB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return db.pool.Query(ctx, sql, args...)
}

func (db *DB) SendBatch(ctx context.Context, batch *pgx.Batch) pgx.BatchResults {
	return db.pool.SendBatch(ctx, batch)
}

// AcquireAdvisoryLock takes a session advisory lock without blocking.
// Returns false when the key is already held, here or in another session.
// The retention trimmer uses this to guarantee a single trim per deployment.
//
// pg_try_advisory_lock binds the lock to the session that ran it, so the
// lock and its later unlock must run on the same backend. A dedicated
// connection is checked out of the pool and held until ReleaseAdvisoryLock;
// running both through the pool would lock on one session and no-op the
// unlock on another, leaking the lock.
func (db *DB) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	db.mu.Lock()
	_, held := db.lockConns[key]
	db.mu.Unlock()
	if held {
		return false, nil
	}

	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection for advisory lock: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		conn.Release()
		return false, err
	}
	if !acquired {
		conn.Release()
		return false, nil
	}

	db.mu.Lock()
	db.lockConns[key] = conn
	db.mu.Unlock()
	return true, nil
}

// ReleaseAdvisoryLock unlocks the key on the session that acquired it and
// returns the pinned connection to the pool. Releasing a key this DB does
// not hold is a no-op.
func (db *DB) ReleaseAdvisoryLock(ctx context.Context, key int64) error {
	db.mu.Lock()
	conn, held := db.lockConns[key]
	delete(db.lockConns, key)
	db.mu.Unlock()
	if !held {
		return nil
	}

	defer conn.Release()
	_, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", key)
	return err
}
