// Package postgres stores policy documents and chunk embeddings in
// PostgreSQL. Similarity search loads the candidate embeddings and ranks
// them in process; the corpus is small enough that no vector index is used.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
)

//go:embed schema.sql
var schema string

// migrationLockName serialises schema creation between instances that
// start at the same time.
const migrationLockName = "schema"

// DB is the connection pool shared by the document store, the vector store
// and the advisory lock.
type DB struct {
	*sql.DB
}

// Config controls the connection pool
type Config struct {
	URL string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// ConnectTimeout bounds the initial ping
	ConnectTimeout time.Duration
}

// DefaultConfig returns pool settings sized for a single service instance
// over a small corpus.
func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 10 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// Connect opens the pool and waits for the server to answer.
func Connect(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: database url is required", domain.ErrInvalidInput)
	}

	pool, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := pool.PingContext(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	return &DB{DB: pool}, nil
}

// Migrate creates the documents and embeddings tables if they are missing.
// The statements run in one transaction holding a transaction-scoped
// advisory lock, so concurrent callers apply them one at a time.
func (db *DB) Migrate(ctx context.Context) error {
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", hashLockName(migrationLockName)); err != nil {
			return fmt.Errorf("lock: %w", err)
		}
		_, err := tx.ExecContext(ctx, schema)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Ping reports whether the database answers
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// withTx runs fn in a transaction, committing when fn returns nil.
func (db *DB) withTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
