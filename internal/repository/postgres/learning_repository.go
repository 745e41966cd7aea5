package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/bakecast/internal/domain"
	"github.com/jmoiron/sqlx"
)

func (s *Store) GetLearningState(ctx context.Context, storeID, productID int64) (*domain.LearningState, error) {
	query := `
		SELECT store_id, product_id, '' AS product_name, avg_error, avg_error_pct, sample_size, last_updated
		FROM forecast_learning
		WHERE store_id = $1 AND product_id = $2
	`

	var state domain.LearningState
	err := sqlx.GetContext(ctx, s.q, &state, query, storeID, productID)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get learning state: %w", err)
	}
	return &state, nil
}

func (s *Store) ListLearningStates(ctx context.Context, storeID int64) ([]domain.LearningState, error) {
	query := `
		SELECT fl.store_id, fl.product_id, p.product_name, fl.avg_error,
		       fl.avg_error_pct, fl.sample_size, fl.last_updated
		FROM forecast_learning fl
		JOIN products p ON p.product_id = fl.product_id
		WHERE fl.store_id = $1
		ORDER BY p.product_name
	`

	var states []domain.LearningState
	if err := sqlx.SelectContext(ctx, s.q, &states, query, storeID); err != nil {
		return nil, fmt.Errorf("failed to list learning states: %w", err)
	}
	return states, nil
}

// LearningSamples returns one outcome per product and target date: approved
// forecasts with known actuals, taken from the latest forecast date.
func (s *Store) LearningSamples(ctx context.Context, storeID int64, since time.Time) ([]domain.LearningSample, error) {
	query := `
		SELECT DISTINCT ON (product_id, target_date)
			product_id, target_date, forecast_error, error_pct
		FROM forecast_history
		WHERE store_id = $1
		  AND status = 'approved'
		  AND target_date >= $2
		  AND actual_sold IS NOT NULL
		  AND forecast_error IS NOT NULL
		  AND error_pct IS NOT NULL
		ORDER BY product_id, target_date, forecast_date DESC
	`

	var samples []domain.LearningSample
	if err := sqlx.SelectContext(ctx, s.q, &samples, query, storeID, since); err != nil {
		return nil, fmt.Errorf("failed to fetch learning samples: %w", err)
	}
	return samples, nil
}

func (s *Store) UpsertLearningState(ctx context.Context, state domain.LearningState) error {
	query := `
		INSERT INTO forecast_learning (store_id, product_id, avg_error, avg_error_pct, sample_size, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (store_id, product_id)
		DO UPDATE SET
			avg_error = EXCLUDED.avg_error,
			avg_error_pct = EXCLUDED.avg_error_pct,
			sample_size = EXCLUDED.sample_size,
			last_updated = EXCLUDED.last_updated
	`

	_, err := s.q.ExecContext(ctx, query,
		state.StoreID,
		state.ProductID,
		state.AvgError,
		state.AvgErrorPct,
		state.SampleSize,
		state.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert learning state: %w", err)
	}
	return nil
}
