package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/andresuchdata/bakecast/internal/domain"
	"github.com/jmoiron/sqlx"
)

// PlannedVsActual pairs each planned product for the date with its recorded
// production. Products without a plan or without production are left out.
func (s *Store) PlannedVsActual(ctx context.Context, storeID int64, date time.Time) ([]domain.PlanActual, error) {
	query := `
		SELECT
			dpp.product_id,
			dpp.planned_quantity,
			dt.produced,
			COALESCE(dt.waste, 0) AS waste
		FROM daily_production_plan dpp
		JOIN daily_throwaway dt
		  ON dt.store_id = dpp.store_id
		 AND dt.product_id = dpp.product_id
		 AND dt.date = dpp.production_date
		WHERE dpp.store_id = $1
		  AND dpp.production_date = $2
		  AND dt.produced IS NOT NULL
		ORDER BY dpp.product_id
	`

	var rows []domain.PlanActual
	if err := sqlx.SelectContext(ctx, s.q, &rows, query, storeID, date); err != nil {
		return nil, fmt.Errorf("failed to fetch planned vs actual: %w", err)
	}
	return rows, nil
}

func (s *Store) UpsertAccuracyRecord(ctx context.Context, record domain.AccuracyRecord) error {
	query := `
		INSERT INTO forecast_accuracy (
			store_id, product_id, target_date, planned_quantity,
			actual_produced, actual_sold, actual_waste,
			error_quantity, error_percent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (store_id, product_id, target_date)
		DO UPDATE SET
			planned_quantity = EXCLUDED.planned_quantity,
			actual_produced = EXCLUDED.actual_produced,
			actual_sold = EXCLUDED.actual_sold,
			actual_waste = EXCLUDED.actual_waste,
			error_quantity = EXCLUDED.error_quantity,
			error_percent = EXCLUDED.error_percent,
			created_at = EXCLUDED.created_at
	`

	_, err := s.q.ExecContext(ctx, query,
		record.StoreID,
		record.ProductID,
		record.TargetDate,
		record.PlannedQuantity,
		record.ActualProduced,
		record.ActualSold,
		record.ActualWaste,
		record.ErrorQuantity,
		record.ErrorPercent,
		record.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert accuracy record: %w", err)
	}
	return nil
}

// RecordForecastOutcome stamps the realized sales onto approved forecasts for
// the product and target date.
func (s *Store) RecordForecastOutcome(ctx context.Context, storeID, productID int64, targetDate time.Time, actualSold int) (int64, error) {
	query := `
		UPDATE forecast_history
		SET
			actual_sold = $1,
			forecast_error = $1 - final_quantity,
			error_pct = CASE
				WHEN final_quantity > 0
				THEN ($1 - final_quantity)::double precision / final_quantity * 100
				ELSE 0
			END
		WHERE store_id = $2
		  AND product_id = $3
		  AND target_date = $4
		  AND status = 'approved'
		  AND final_quantity IS NOT NULL
	`

	res, err := s.q.ExecContext(ctx, query, actualSold, storeID, productID, targetDate)
	if err != nil {
		return 0, fmt.Errorf("failed to record forecast outcome: %w", err)
	}
	return rowsAffected(res)
}

func (s *Store) AccuracyTrend(ctx context.Context, storeID int64, since time.Time) ([]domain.AccuracyPoint, error) {
	query := `
		SELECT target_date, AVG(error_pct) AS avg_error_pct
		FROM forecast_history
		WHERE store_id = $1
		  AND target_date >= $2
		  AND status = 'approved'
		  AND error_pct IS NOT NULL
		GROUP BY target_date
		ORDER BY target_date
	`

	var points []domain.AccuracyPoint
	if err := sqlx.SelectContext(ctx, s.q, &points, query, storeID, since); err != nil {
		return nil, fmt.Errorf("failed to fetch accuracy trend: %w", err)
	}
	return points, nil
}

func (s *Store) LatestOutcomeDate(ctx context.Context, storeID int64) (*time.Time, error) {
	query := `
		SELECT MAX(target_date)
		FROM forecast_history
		WHERE store_id = $1
		  AND actual_sold IS NOT NULL
	`

	var latest sql.NullTime
	if err := s.q.QueryRowxContext(ctx, query, storeID).Scan(&latest); err != nil {
		return nil, fmt.Errorf("failed to fetch latest outcome date: %w", err)
	}
	if !latest.Valid {
		return nil, nil
	}
	return &latest.Time, nil
}
