package service

import (
	"context"
	"time"

	"github.com/andresuchdata/bakecast/internal/domain"
	"github.com/andresuchdata/bakecast/internal/forecast"
	"github.com/andresuchdata/bakecast/internal/repository"
	"github.com/rs/zerolog/log"
)

const DefaultLookbackDays = 7

type LearningService struct {
	repo         repository.Repository
	maxPct       float64
	lookbackDays int
	now          func() time.Time
}

func NewLearningService(repo repository.Repository, policy forecast.Policy, lookbackDays int) *LearningService {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	return &LearningService{
		repo:         repo,
		maxPct:       policy.MaxAdjustmentPct,
		lookbackDays: lookbackDays,
		now:          time.Now,
	}
}

// LearningResult is the outcome of one learning pass.
type LearningResult struct {
	StoreID      int64                  `json:"store_id"`
	LookbackDays int                    `json:"lookback_days"`
	Updated      int                    `json:"updated"`
	States       []domain.LearningState `json:"states"`
	Message      string                 `json:"message,omitempty"`
}

// UpdateLearning recomputes the bias of every product with approved outcomes
// inside the window. Products without outcomes keep their previous state.
func (s *LearningService) UpdateLearning(ctx context.Context, storeID int64, lookbackDays int) (*LearningResult, error) {
	if storeID <= 0 {
		return nil, domain.InvalidInput("store_id is required")
	}
	if lookbackDays < 0 {
		return nil, domain.InvalidInput("lookback_days must not be negative")
	}
	if lookbackDays == 0 {
		lookbackDays = s.lookbackDays
	}

	now := s.now().UTC()
	since := domain.Day(now).AddDate(0, 0, -lookbackDays)

	result := &LearningResult{StoreID: storeID, LookbackDays: lookbackDays}
	err := s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		samples, err := tx.LearningSamples(ctx, storeID, since)
		if err != nil {
			return err
		}

		states := forecast.AggregateLearning(storeID, samples, s.maxPct, now)
		for _, state := range states {
			if err := tx.UpsertLearningState(ctx, state); err != nil {
				return err
			}
		}
		result.States = states
		return nil
	})
	if err != nil {
		return nil, domain.Persistence("update learning", err)
	}

	result.Updated = len(result.States)
	if result.Updated == 0 {
		result.Message = NotEnoughData
	}

	log.Info().
		Int64("store_id", storeID).
		Int("lookback_days", lookbackDays).
		Int("updated", result.Updated).
		Msg("learning updated")

	return result, nil
}

func (s *LearningService) ListStates(ctx context.Context, storeID int64) ([]domain.LearningState, error) {
	if storeID <= 0 {
		return nil, domain.InvalidInput("store_id is required")
	}
	states, err := s.repo.ListLearningStates(ctx, storeID)
	if err != nil {
		return nil, domain.Persistence("list learning states", err)
	}
	return states, nil
}
