package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/bakecast/internal/config"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

const defaultMaxConcurrentTx = 10

type DB struct {
	*sqlx.DB
	sem *semaphore.Weighted
}

// NewDB opens a lib/pq connection pool from discrete connection settings, or
// from DATABASE_URL through pgx when it is set.
func NewDB(cfg *config.DatabaseConfig) (*DB, error) {
	if cfg.URL != "" {
		return Open("pgx", cfg.URL, cfg.MaxConns)
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	return Open("postgres", connStr, cfg.MaxConns)
}

// Open connects with the named driver ("postgres" or "pgx") and configures the pool.
func Open(driver, dsn string, maxConcurrentTx int) (*DB, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return Wrap(db, maxConcurrentTx), nil
}

// Wrap adapts an existing sqlx handle, limiting concurrent transactions.
func Wrap(db *sqlx.DB, maxConcurrentTx int) *DB {
	if maxConcurrentTx <= 0 {
		maxConcurrentTx = defaultMaxConcurrentTx
	}
	return &DB{
		DB:  db,
		sem: semaphore.NewWeighted(int64(maxConcurrentTx)),
	}
}

// WithTx executes a function within a transaction
func (db *DB) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	// Acquire semaphore
	if err := db.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire semaphore: %w", err)
	}
	defer db.sem.Release(1)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("could not rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}
