package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/bakecast/internal/domain"
	"github.com/jmoiron/sqlx"
)

const forecastColumns = `
	fh.store_id, fh.product_id, p.product_name, fh.forecast_date, fh.target_date,
	fh.predicted_quantity, fh.context_expectation, fh.context_multiplier,
	fh.adjusted_quantity, fh.manager_override_quantity, fh.final_quantity,
	fh.status, fh.confidence, fh.avg_sold, fh.learning_adjustment,
	fh.adjustment_reason, fh.model_version, fh.approved_by, fh.approved_at,
	fh.actual_sold, fh.forecast_error, fh.error_pct, fh.created_at
`

func (s *Store) UpsertForecastRecord(ctx context.Context, record *domain.ForecastRecord) error {
	query := `
		INSERT INTO forecast_history (
			store_id, product_id, forecast_date, target_date,
			predicted_quantity, context_expectation, context_multiplier,
			adjusted_quantity, status, confidence, avg_sold,
			learning_adjustment, adjustment_reason, model_version, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		ON CONFLICT (store_id, product_id, forecast_date, target_date)
		DO UPDATE SET
			predicted_quantity = EXCLUDED.predicted_quantity,
			context_expectation = EXCLUDED.context_expectation,
			context_multiplier = EXCLUDED.context_multiplier,
			adjusted_quantity = EXCLUDED.adjusted_quantity,
			status = EXCLUDED.status,
			confidence = EXCLUDED.confidence,
			avg_sold = EXCLUDED.avg_sold,
			learning_adjustment = EXCLUDED.learning_adjustment,
			adjustment_reason = EXCLUDED.adjustment_reason,
			model_version = EXCLUDED.model_version,
			final_quantity = NULL,
			approved_by = NULL,
			approved_at = NULL
		RETURNING created_at
	`

	err := s.q.QueryRowxContext(ctx, query,
		record.StoreID,
		record.ProductID,
		record.ForecastDate,
		record.TargetDate,
		record.PredictedQuantity,
		record.ContextExpectation,
		record.ContextMultiplier,
		record.AdjustedQuantity,
		record.Status,
		record.Confidence,
		record.AvgSold,
		record.LearningAdjustment,
		record.AdjustmentReason,
		record.ModelVersion,
	).Scan(&record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert forecast record: %w", err)
	}
	return nil
}

// ListForecastRecords returns the most recently generated record per product
// for the target date. An empty status matches every status.
func (s *Store) ListForecastRecords(ctx context.Context, storeID int64, targetDate time.Time, status domain.ForecastStatus) ([]domain.ForecastRecord, error) {
	query := `
		SELECT * FROM (
			SELECT DISTINCT ON (fh.product_id) ` + forecastColumns + `
			FROM forecast_history fh
			JOIN products p ON p.product_id = fh.product_id
			WHERE fh.store_id = $1
			  AND fh.target_date = $2
			  AND ($3 = '' OR fh.status = $3)
			ORDER BY fh.product_id, fh.forecast_date DESC
		) latest
		ORDER BY product_name
	`

	var records []domain.ForecastRecord
	if err := sqlx.SelectContext(ctx, s.q, &records, query, storeID, targetDate, string(status)); err != nil {
		return nil, fmt.Errorf("failed to list forecast records: %w", err)
	}

	return records, nil
}

func (s *Store) ListForecastsByStatus(ctx context.Context, storeID int64, status domain.ForecastStatus) ([]domain.ForecastRecord, error) {
	query := `
		SELECT ` + forecastColumns + `
		FROM forecast_history fh
		JOIN products p ON p.product_id = fh.product_id
		WHERE fh.store_id = $1
		  AND fh.status = $2
		ORDER BY fh.target_date DESC, p.product_name
		LIMIT 500
	`

	var records []domain.ForecastRecord
	if err := sqlx.SelectContext(ctx, s.q, &records, query, storeID, string(status)); err != nil {
		return nil, fmt.Errorf("failed to list forecasts by status: %w", err)
	}

	return records, nil
}

func (s *Store) GetForecastContext(ctx context.Context, storeID int64, targetDate time.Time) (*domain.ForecastContext, error) {
	query := `
		SELECT store_id, target_date, expectation, reason, notes
		FROM forecast_context
		WHERE store_id = $1 AND target_date = $2
	`

	var fc domain.ForecastContext
	err := sqlx.GetContext(ctx, s.q, &fc, query, storeID, targetDate)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get forecast context: %w", err)
	}
	return &fc, nil
}

func (s *Store) UpsertForecastContext(ctx context.Context, fc domain.ForecastContext) error {
	query := `
		INSERT INTO forecast_context (store_id, target_date, expectation, reason, notes, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (store_id, target_date)
		DO UPDATE SET
			expectation = EXCLUDED.expectation,
			reason = EXCLUDED.reason,
			notes = EXCLUDED.notes,
			updated_at = NOW()
	`

	_, err := s.q.ExecContext(ctx, query, fc.StoreID, fc.TargetDate, fc.Expectation, fc.Reason, fc.Notes)
	if err != nil {
		return fmt.Errorf("failed to upsert forecast context: %w", err)
	}
	return nil
}

// ApplyContext rewrites the context fields of every record for the store and
// target date. ROUND on double precision ties to even, like the generator.
func (s *Store) ApplyContext(ctx context.Context, storeID int64, targetDate time.Time, expectation domain.Expectation, multiplier float64) (int64, error) {
	query := `
		UPDATE forecast_history
		SET
			context_expectation = $1,
			context_multiplier = $2::double precision,
			adjusted_quantity = ROUND(predicted_quantity * $2::double precision)::int
		WHERE store_id = $3
		  AND target_date = $4
	`

	res, err := s.q.ExecContext(ctx, query, expectation, multiplier, storeID, targetDate)
	if err != nil {
		return 0, fmt.Errorf("failed to apply forecast context: %w", err)
	}
	return rowsAffected(res)
}

func (s *Store) ApproveForecast(ctx context.Context, storeID, productID int64, targetDate time.Time, finalQuantity int, approvedBy string, approvedAt time.Time) (int64, error) {
	query := `
		UPDATE forecast_history
		SET
			final_quantity = $1,
			status = 'approved',
			approved_by = $2,
			approved_at = $3
		WHERE store_id = $4
		  AND product_id = $5
		  AND target_date = $6
	`

	res, err := s.q.ExecContext(ctx, query, finalQuantity, approvedBy, approvedAt, storeID, productID, targetDate)
	if err != nil {
		return 0, fmt.Errorf("failed to approve forecast: %w", err)
	}
	return rowsAffected(res)
}

func (s *Store) UpsertProductionPlan(ctx context.Context, plan domain.ProductionPlan) error {
	query := `
		INSERT INTO daily_production_plan (store_id, product_id, production_date, planned_quantity, created_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (store_id, product_id, production_date)
		DO UPDATE SET
			planned_quantity = EXCLUDED.planned_quantity,
			created_by = EXCLUDED.created_by,
			updated_at = NOW()
	`

	_, err := s.q.ExecContext(ctx, query, plan.StoreID, plan.ProductID, plan.ProductionDate, plan.PlannedQuantity, plan.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to upsert production plan: %w", err)
	}
	return nil
}

func (s *Store) ForecastHistory(ctx context.Context, storeID int64, limit int) ([]domain.HistoryPoint, error) {
	if limit <= 0 {
		limit = 30
	}

	query := `
		SELECT
			target_date,
			SUM(predicted_quantity)::int AS total_predicted,
			SUM(final_quantity)::int AS total_final,
			AVG(error_pct) AS avg_error
		FROM forecast_history
		WHERE store_id = $1
		  AND target_date <= CURRENT_DATE
		GROUP BY target_date
		ORDER BY target_date DESC
		LIMIT $2
	`

	var points []domain.HistoryPoint
	if err := sqlx.SelectContext(ctx, s.q, &points, query, storeID, limit); err != nil {
		return nil, fmt.Errorf("failed to get forecast history: %w", err)
	}

	return points, nil
}
