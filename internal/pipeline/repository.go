package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Repository handles database operations for pipeline tracking
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a new pipeline repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// CreateRun inserts a run record and fills in its ID.
func (r *Repository) CreateRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO pipeline_runs (
			run_id, pipeline_name, store_id, date, status, attempts, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.db.QueryRowxContext(ctx, query,
		run.RunID, run.PipelineName, run.StoreID, run.Date,
		run.Status, run.Attempts, run.StartedAt,
	).Scan(&run.ID)
	if err != nil {
		return fmt.Errorf("failed to create pipeline run: %w", err)
	}
	return nil
}

// UpdateRun updates an existing pipeline run
func (r *Repository) UpdateRun(ctx context.Context, run *Run) error {
	query := `
		UPDATE pipeline_runs
		SET status = $1, attempts = $2, completed_at = $3, error_message = $4
		WHERE id = $5
	`

	_, err := r.db.ExecContext(ctx, query,
		run.Status, run.Attempts, run.CompletedAt, run.ErrorMessage, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update pipeline run: %w", err)
	}
	return nil
}

// ListRuns returns the runs of a pipeline for a date, newest first.
func (r *Repository) ListRuns(ctx context.Context, pipelineName string, date time.Time) ([]Run, error) {
	query := `
		SELECT id, run_id, pipeline_name, store_id, date, status, attempts,
		       started_at, completed_at, error_message
		FROM pipeline_runs
		WHERE pipeline_name = $1 AND date = $2
		ORDER BY started_at DESC, store_id
	`

	var runs []Run
	if err := sqlx.SelectContext(ctx, r.db, &runs, query, pipelineName, date); err != nil {
		return nil, fmt.Errorf("failed to list pipeline runs: %w", err)
	}
	return runs, nil
}
