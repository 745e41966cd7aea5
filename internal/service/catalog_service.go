package service

import (
	"context"
	"strings"

	"github.com/andresuchdata/bakecast/internal/domain"
	"github.com/andresuchdata/bakecast/internal/repository"
)

// CatalogService manages the products and daily actuals the forecast reads from.
type CatalogService struct {
	repo repository.CatalogRepository
}

func NewCatalogService(repo repository.CatalogRepository) *CatalogService {
	return &CatalogService{repo: repo}
}

func (s *CatalogService) ListStores(ctx context.Context, storeIDs []int64) ([]domain.Store, error) {
	stores, err := s.repo.ListStores(ctx, storeIDs)
	if err != nil {
		return nil, domain.Persistence("list stores", err)
	}
	return stores, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, storeID int64) ([]domain.Product, error) {
	if storeID <= 0 {
		return nil, domain.InvalidInput("store_id is required")
	}
	products, err := s.repo.ListActiveProducts(ctx, storeID)
	if err != nil {
		return nil, domain.Persistence("list products", err)
	}
	return products, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, product *domain.Product) error {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" {
		return domain.InvalidInput("product_name is required")
	}
	product.IsActive = true
	return domain.Persistence("create product", s.repo.CreateProduct(ctx, product))
}

func (s *CatalogService) RecordDailyActual(ctx context.Context, actual domain.DailyActual) error {
	if err := validateStoreDate(actual.StoreID, actual.Date); err != nil {
		return err
	}
	if actual.ProductID <= 0 {
		return domain.InvalidInput("product_id is required")
	}
	if actual.Produced < 0 || actual.Waste < 0 {
		return domain.InvalidInput("produced and waste must not be negative")
	}
	actual.Date = domain.Day(actual.Date)
	return domain.Persistence("record daily actual", s.repo.UpsertDailyActual(ctx, actual))
}
