package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/bakecast/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

func (s *Store) ListStores(ctx context.Context, storeIDs []int64) ([]domain.Store, error) {
	query := `
		SELECT store_id, store_name, is_active
		FROM stores
		WHERE is_active = TRUE
		  AND ($1::bigint[] IS NULL OR store_id = ANY($1::bigint[]))
		ORDER BY store_id
	`

	var stores []domain.Store
	if err := sqlx.SelectContext(ctx, s.q, &stores, query, pq.Array(storeIDs)); err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}

	return stores, nil
}

func (s *Store) ListActiveProducts(ctx context.Context, storeID int64) ([]domain.Product, error) {
	query := `
		SELECT product_id, product_name, COALESCE(category, '') AS category,
		       is_active, store_id, created_at
		FROM products
		WHERE is_active = TRUE
		  AND (store_id IS NULL OR store_id = $1)
		ORDER BY product_name
	`

	var products []domain.Product
	if err := sqlx.SelectContext(ctx, s.q, &products, query, storeID); err != nil {
		return nil, fmt.Errorf("failed to list active products: %w", err)
	}

	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (product_name, category, is_active, store_id, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, NOW())
		ON CONFLICT (product_name)
		DO UPDATE SET
			category = COALESCE(EXCLUDED.category, products.category),
			is_active = EXCLUDED.is_active
		RETURNING product_id, created_at
	`

	err := s.q.QueryRowxContext(ctx, query,
		product.Name,
		product.Category,
		product.IsActive,
		product.StoreID,
	).Scan(&product.ID, &product.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

func (s *Store) UpsertDailyActual(ctx context.Context, actual domain.DailyActual) error {
	query := `
		INSERT INTO daily_throwaway (store_id, product_id, date, produced, waste, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NOW(), NOW())
		ON CONFLICT (store_id, product_id, date)
		DO UPDATE SET
			produced = EXCLUDED.produced,
			waste = EXCLUDED.waste,
			source = COALESCE(EXCLUDED.source, daily_throwaway.source),
			updated_at = NOW()
	`

	_, err := s.q.ExecContext(ctx, query,
		actual.StoreID,
		actual.ProductID,
		actual.Date,
		actual.Produced,
		actual.Waste,
		actual.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily actual: %w", err)
	}
	return nil
}

func (s *Store) UpsertDailyWaste(ctx context.Context, storeID, productID int64, date time.Time, waste int) error {
	query := `
		INSERT INTO daily_throwaway (store_id, product_id, date, waste, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'waste_submission', NOW(), NOW())
		ON CONFLICT (store_id, product_id, date)
		DO UPDATE SET waste = EXCLUDED.waste, updated_at = NOW()
	`

	if _, err := s.q.ExecContext(ctx, query, storeID, productID, date, waste); err != nil {
		return fmt.Errorf("failed to upsert daily waste: %w", err)
	}
	return nil
}

func (s *Store) SameWeekdayActuals(ctx context.Context, storeID, productID int64, weekday int, before time.Time, limit int) ([]domain.DailyActual, error) {
	query := `
		SELECT store_id, product_id, date, produced, waste, COALESCE(source, '') AS source
		FROM daily_throwaway
		WHERE store_id = $1
		  AND product_id = $2
		  AND EXTRACT(ISODOW FROM date)::int - 1 = $3
		  AND date < $4
		  AND produced IS NOT NULL
		  AND waste IS NOT NULL
		ORDER BY date DESC
		LIMIT $5
	`

	var actuals []domain.DailyActual
	if err := sqlx.SelectContext(ctx, s.q, &actuals, query, storeID, productID, weekday, before, limit); err != nil {
		return nil, fmt.Errorf("failed to fetch same-weekday actuals: %w", err)
	}

	return actuals, nil
}
