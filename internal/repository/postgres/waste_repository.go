package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/bakecast/internal/domain"
	"github.com/jmoiron/sqlx"
)

// UpsertWasteSubmission records a staff submission. Resubmitting the same
// product and date replaces the quantity and puts it back under review.
func (s *Store) UpsertWasteSubmission(ctx context.Context, sub *domain.WasteSubmission) error {
	query := `
		INSERT INTO waste_submissions (store_id, product_id, waste_date, waste_quantity, submitted_by, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', NOW())
		ON CONFLICT (store_id, product_id, waste_date)
		DO UPDATE SET
			waste_quantity = EXCLUDED.waste_quantity,
			submitted_by = EXCLUDED.submitted_by,
			status = 'pending',
			approved_by = NULL,
			approved_at = NULL
		RETURNING submission_id, status
	`

	err := s.q.QueryRowxContext(ctx, query,
		sub.StoreID,
		sub.ProductID,
		sub.WasteDate,
		sub.WasteQuantity,
		sub.SubmittedBy,
	).Scan(&sub.ID, &sub.Status)
	if err != nil {
		return fmt.Errorf("failed to upsert waste submission: %w", err)
	}
	return nil
}

func (s *Store) ListPendingWaste(ctx context.Context, storeID int64, wasteDate time.Time) ([]domain.WasteSubmission, error) {
	query := `
		SELECT ws.submission_id, ws.store_id, ws.product_id, p.product_name,
		       ws.waste_date, ws.waste_quantity, ws.submitted_by, ws.status,
		       ws.approved_by, ws.approved_at
		FROM waste_submissions ws
		JOIN products p ON p.product_id = ws.product_id
		WHERE ws.store_id = $1
		  AND ws.waste_date = $2
		  AND ws.status = 'pending'
		ORDER BY p.product_name
	`

	var subs []domain.WasteSubmission
	if err := sqlx.SelectContext(ctx, s.q, &subs, query, storeID, wasteDate); err != nil {
		return nil, fmt.Errorf("failed to list pending waste: %w", err)
	}
	return subs, nil
}

// ApproveWasteSubmission marks a pending submission approved and returns it,
// or nil when no pending submission matches.
func (s *Store) ApproveWasteSubmission(ctx context.Context, submissionID, storeID int64, approvedBy string, approvedAt time.Time) (*domain.WasteSubmission, error) {
	query := `
		UPDATE waste_submissions ws
		SET status = 'approved', approved_by = $1, approved_at = $2
		FROM products p
		WHERE p.product_id = ws.product_id
		  AND ws.submission_id = $3
		  AND ws.store_id = $4
		  AND ws.status = 'pending'
		RETURNING ws.submission_id, ws.store_id, ws.product_id, p.product_name,
		          ws.waste_date, ws.waste_quantity, ws.submitted_by, ws.status,
		          ws.approved_by, ws.approved_at
	`

	var sub domain.WasteSubmission
	err := sqlx.GetContext(ctx, s.q, &sub, query, approvedBy, approvedAt, submissionID, storeID)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to approve waste submission: %w", err)
	}
	return &sub, nil
}
