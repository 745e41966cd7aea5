package service

import (
	"context"

	"github.com/andresuchdata/bakecast/internal/domain"
	"github.com/andresuchdata/bakecast/internal/repository"
)

const maxAuditLimit = 500

// AuditService reads the trail written by the approval and waste flows.
type AuditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

func (s *AuditService) List(ctx context.Context, storeID int64, limit int) ([]domain.AuditEvent, error) {
	if storeID <= 0 {
		return nil, domain.InvalidInput("store_id is required")
	}
	if limit <= 0 || limit > maxAuditLimit {
		return nil, domain.InvalidInput("limit must be between 1 and %d", maxAuditLimit)
	}
	events, err := s.repo.ListAuditEvents(ctx, storeID, limit)
	if err != nil {
		return nil, domain.Persistence("list audit events", err)
	}
	return events, nil
}
