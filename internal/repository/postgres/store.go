package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/andresuchdata/bakecast/internal/repository"
	"github.com/jmoiron/sqlx"
)

// Store implements repository.Repository on PostgreSQL. A Store created by
// WithinTx routes every statement through the open transaction.
type Store struct {
	db *DB
	q  sqlx.ExtContext
	tx bool
}

// NewStore creates a Store bound to the connection pool.
func NewStore(db *DB) *Store {
	return &Store{db: db, q: db.DB}
}

var _ repository.Repository = (*Store)(nil)

// WithinTx runs fn in a single transaction. Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Repository) error) error {
	if s.tx {
		return fn(s)
	}
	return s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&Store{db: s.db, q: tx, tx: true})
	})
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
