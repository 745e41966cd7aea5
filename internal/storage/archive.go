package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/andresuchdata/bakecast/internal/domain"
)

// PlanArchive is the JSON document written for each approval.
type PlanArchive struct {
	StoreID    int64                   `json:"store_id"`
	TargetDate string                  `json:"target_date"`
	ApprovedBy string                  `json:"approved_by"`
	ApprovedAt time.Time               `json:"approved_at"`
	Plans      []domain.ProductionPlan `json:"plans"`
}

// PlanArchiver keeps a copy of every approved production plan in object storage.
// A nil backend turns archiving off.
type PlanArchiver struct {
	backend ObjectStorage
}

func NewPlanArchiver(backend ObjectStorage) *PlanArchiver {
	return &PlanArchiver{backend: backend}
}

// Enabled reports whether a storage backend is configured.
func (a *PlanArchiver) Enabled() bool {
	return a != nil && a.backend != nil
}

// ArchiveKey is plans/<store>/<date>/<approved-at>.json so later approvals never overwrite earlier ones.
func ArchiveKey(storeID int64, targetDate, approvedAt time.Time) string {
	return fmt.Sprintf("plans/%d/%s/%s.json", storeID, domain.FormatDate(targetDate), approvedAt.UTC().Format("20060102T150405Z"))
}

// Archive uploads the approved plan and returns its object key.
func (a *PlanArchiver) Archive(ctx context.Context, storeID int64, targetDate time.Time, approvedBy string, approvedAt time.Time, plans []domain.ProductionPlan) (string, error) {
	if !a.Enabled() {
		return "", nil
	}

	payload, err := json.Marshal(PlanArchive{
		StoreID:    storeID,
		TargetDate: domain.FormatDate(targetDate),
		ApprovedBy: approvedBy,
		ApprovedAt: approvedAt,
		Plans:      plans,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode plan archive: %w", err)
	}

	key := ArchiveKey(storeID, targetDate, approvedAt)
	if err := a.backend.UploadObject(ctx, key, payload); err != nil {
		return "", err
	}
	return key, nil
}

// History lists archived plans for a store and date, oldest approval first.
func (a *PlanArchiver) History(ctx context.Context, storeID int64, targetDate time.Time) ([]ObjectInfo, error) {
	if !a.Enabled() {
		return nil, nil
	}
	objects, err := a.backend.ListObjects(ctx, fmt.Sprintf("plans/%d/%s/", storeID, domain.FormatDate(targetDate)))
	if err != nil {
		return nil, err
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}
