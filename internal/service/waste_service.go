package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/andresuchdata/bakecast/internal/domain"
	"github.com/andresuchdata/bakecast/internal/notify"
	"github.com/andresuchdata/bakecast/internal/repository"
	"github.com/rs/zerolog/log"
)

type WasteService struct {
	repo     repository.Repository
	accuracy *AccuracyService
	notifier notify.Notifier
	now      func() time.Time
}

func NewWasteService(repo repository.Repository, accuracy *AccuracyService, notifier notify.Notifier) *WasteService {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &WasteService{repo: repo, accuracy: accuracy, notifier: notifier, now: time.Now}
}

// SubmitWasteRequest is a staff member's waste count for one date.
type SubmitWasteRequest struct {
	StoreID     int64
	WasteDate   time.Time
	SubmittedBy string
	Entries     []domain.WasteEntry
}

func (s *WasteService) Submit(ctx context.Context, req SubmitWasteRequest) ([]domain.WasteSubmission, error) {
	if err := validateStoreDate(req.StoreID, req.WasteDate); err != nil {
		return nil, err
	}
	if req.SubmittedBy == "" {
		return nil, domain.InvalidInput("submitted_by is required")
	}
	if len(req.Entries) == 0 {
		return nil, domain.InvalidInput("entries must not be empty")
	}
	for _, e := range req.Entries {
		if e.ProductID <= 0 {
			return nil, domain.InvalidInput("product_id is required for every entry")
		}
		if e.WasteQuantity < 0 {
			return nil, domain.InvalidInput("waste_quantity for product %d must not be negative", e.ProductID)
		}
	}

	wasteDate := domain.Day(req.WasteDate)
	subs := make([]domain.WasteSubmission, 0, len(req.Entries))
	err := s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		for _, e := range req.Entries {
			sub := domain.WasteSubmission{
				StoreID:       req.StoreID,
				ProductID:     e.ProductID,
				WasteDate:     wasteDate,
				WasteQuantity: e.WasteQuantity,
				SubmittedBy:   req.SubmittedBy,
			}
			if err := tx.UpsertWasteSubmission(ctx, &sub); err != nil {
				return err
			}
			subs = append(subs, sub)
		}
		return tx.InsertAuditEvent(ctx, &domain.AuditEvent{
			StoreID:      req.StoreID,
			Action:       domain.AuditWasteSubmitted,
			ResourceType: "waste",
			ResourceDate: wasteDate,
			Actor:        req.SubmittedBy,
			Details:      map[string]any{"entries": len(subs), "submission_ids": submissionIDs(subs)},
		})
	})
	if err != nil {
		return nil, domain.Persistence("submit waste", err)
	}

	log.Info().
		Int64("store_id", req.StoreID).
		Str("waste_date", domain.FormatDate(wasteDate)).
		Int("entries", len(subs)).
		Msg("waste submitted")

	return subs, nil
}

func (s *WasteService) Pending(ctx context.Context, storeID int64, wasteDate time.Time) ([]domain.WasteSubmission, error) {
	if err := validateStoreDate(storeID, wasteDate); err != nil {
		return nil, err
	}
	subs, err := s.repo.ListPendingWaste(ctx, storeID, domain.Day(wasteDate))
	if err != nil {
		return nil, domain.Persistence("list pending waste", err)
	}
	return subs, nil
}

// ApproveWasteRequest approves pending submissions by id.
type ApproveWasteRequest struct {
	StoreID       int64
	SubmissionIDs []int64
	ApprovedBy    string
}

// WasteApprovalResult holds approved submissions and the accuracy recomputed for their dates.
type WasteApprovalResult struct {
	Approved []domain.WasteSubmission `json:"approved"`
	Skipped  []int64                  `json:"skipped_submission_ids"`
	Accuracy []*AccuracyResult        `json:"accuracy"`
}

// Approve copies approved waste into the daily actuals and recomputes
// accuracy for every affected date in the same transaction.
func (s *WasteService) Approve(ctx context.Context, req ApproveWasteRequest) (*WasteApprovalResult, error) {
	if req.StoreID <= 0 {
		return nil, domain.InvalidInput("store_id is required")
	}
	if req.ApprovedBy == "" {
		return nil, domain.InvalidInput("approved_by is required")
	}
	if len(req.SubmissionIDs) == 0 {
		return nil, domain.InvalidInput("submission_ids must not be empty")
	}

	approvedAt := s.now().UTC()
	result := &WasteApprovalResult{
		Approved: []domain.WasteSubmission{},
		Skipped:  []int64{},
		Accuracy: []*AccuracyResult{},
	}

	err := s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		dates := make(map[time.Time][]domain.WasteSubmission)
		for _, id := range req.SubmissionIDs {
			sub, err := tx.ApproveWasteSubmission(ctx, id, req.StoreID, req.ApprovedBy, approvedAt)
			if err != nil {
				return err
			}
			if sub == nil {
				result.Skipped = append(result.Skipped, id)
				continue
			}
			if err := tx.UpsertDailyWaste(ctx, req.StoreID, sub.ProductID, sub.WasteDate, sub.WasteQuantity); err != nil {
				return err
			}
			result.Approved = append(result.Approved, *sub)
			day := domain.Day(sub.WasteDate)
			dates[day] = append(dates[day], *sub)
		}

		ordered := make([]time.Time, 0, len(dates))
		for d := range dates {
			ordered = append(ordered, d)
		}
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

		for _, d := range ordered {
			acc, err := s.accuracy.computeWith(ctx, tx, req.StoreID, d)
			if err != nil {
				return err
			}
			result.Accuracy = append(result.Accuracy, acc)

			err = tx.InsertAuditEvent(ctx, &domain.AuditEvent{
				StoreID:      req.StoreID,
				Action:       domain.AuditWasteApproved,
				ResourceType: "waste",
				ResourceDate: d,
				Actor:        req.ApprovedBy,
				Details:      map[string]any{"submission_ids": submissionIDs(dates[d])},
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, domain.Persistence("approve waste", err)
	}

	if len(result.Approved) > 0 {
		event := notify.Event{
			Type:       notify.EventWasteApproved,
			StoreID:    req.StoreID,
			Actor:      req.ApprovedBy,
			OccurredAt: approvedAt,
			Message:    fmt.Sprintf("%s approved %d waste submissions", req.ApprovedBy, len(result.Approved)),
		}
		if err := s.notifier.Notify(ctx, event); err != nil {
			log.Error().Err(err).Int64("store_id", req.StoreID).Msg("failed to send waste notification")
		}
	}

	return result, nil
}

func submissionIDs(subs []domain.WasteSubmission) []int64 {
	ids := make([]int64, 0, len(subs))
	for _, sub := range subs {
		ids = append(ids, sub.ID)
	}
	return ids
}
