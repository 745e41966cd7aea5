package service

import (
	"context"
	"math"
	"time"

	"github.com/andresuchdata/bakecast/internal/domain"
	"github.com/andresuchdata/bakecast/internal/forecast"
	"github.com/andresuchdata/bakecast/internal/repository"
	"github.com/rs/zerolog/log"
)

const defaultSummaryDays = 30

type AccuracyService struct {
	repo repository.Repository
	now  func() time.Time
}

func NewAccuracyService(repo repository.Repository) *AccuracyService {
	return &AccuracyService{repo: repo, now: time.Now}
}

// AccuracyResult lists the ledger rows written for one store and date.
type AccuracyResult struct {
	StoreID    int64                   `json:"store_id"`
	TargetDate string                  `json:"target_date"`
	Records    []domain.AccuracyRecord `json:"records"`
	Reconciled int64                   `json:"reconciled_forecasts"`
	Message    string                  `json:"message,omitempty"`
}

// ComputeAccuracy compares the production plan of the date with what was
// produced and wasted, and stamps the outcome on the approved forecasts.
func (s *AccuracyService) ComputeAccuracy(ctx context.Context, storeID int64, targetDate time.Time) (*AccuracyResult, error) {
	if err := validateStoreDate(storeID, targetDate); err != nil {
		return nil, err
	}

	var result *AccuracyResult
	err := s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		var err error
		result, err = s.computeWith(ctx, tx, storeID, targetDate)
		return err
	})
	if err != nil {
		return nil, domain.Persistence("compute accuracy", err)
	}
	return result, nil
}

// computeWith runs inside the caller's transaction so waste approval and its
// accuracy recomputation commit together.
func (s *AccuracyService) computeWith(ctx context.Context, tx repository.Repository, storeID int64, targetDate time.Time) (*AccuracyResult, error) {
	targetDate = domain.Day(targetDate)
	computedAt := s.now().UTC()

	result := &AccuracyResult{
		StoreID:    storeID,
		TargetDate: domain.FormatDate(targetDate),
		Records:    []domain.AccuracyRecord{},
	}

	rows, err := tx.PlannedVsActual(ctx, storeID, targetDate)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		sold, errQty, errPct := forecast.Accuracy(row.PlannedQuantity, row.Produced, row.Waste)
		record := domain.AccuracyRecord{
			StoreID:         storeID,
			ProductID:       row.ProductID,
			TargetDate:      targetDate,
			PlannedQuantity: row.PlannedQuantity,
			ActualProduced:  row.Produced,
			ActualSold:      sold,
			ActualWaste:     row.Waste,
			ErrorQuantity:   errQty,
			ErrorPercent:    errPct,
			ComputedAt:      computedAt,
		}
		if err := tx.UpsertAccuracyRecord(ctx, record); err != nil {
			return nil, err
		}

		n, err := tx.RecordForecastOutcome(ctx, storeID, row.ProductID, targetDate, sold)
		if err != nil {
			return nil, err
		}
		result.Reconciled += n
		result.Records = append(result.Records, record)
	}

	if len(result.Records) == 0 {
		result.Message = NotEnoughData
	}

	log.Info().
		Int64("store_id", storeID).
		Str("target_date", result.TargetDate).
		Int("records", len(result.Records)).
		Int64("reconciled", result.Reconciled).
		Msg("accuracy computed")

	return result, nil
}

// Summary reports MAE, MAPE and bias over approved forecasts with outcomes in
// the last days, plus the daily mean error trend.
func (s *AccuracyService) Summary(ctx context.Context, storeID int64, days int) (*domain.AccuracySummary, error) {
	if storeID <= 0 {
		return nil, domain.InvalidInput("store_id is required")
	}
	if days <= 0 {
		days = defaultSummaryDays
	}
	since := domain.Day(s.now()).AddDate(0, 0, -days)

	samples, err := s.repo.LearningSamples(ctx, storeID, since)
	if err != nil {
		return nil, domain.Persistence("accuracy samples", err)
	}
	trend, err := s.repo.AccuracyTrend(ctx, storeID, since)
	if err != nil {
		return nil, domain.Persistence("accuracy trend", err)
	}
	latest, err := s.repo.LatestOutcomeDate(ctx, storeID)
	if err != nil {
		return nil, domain.Persistence("latest outcome date", err)
	}

	summary := &domain.AccuracySummary{
		StoreID:    storeID,
		SampleSize: len(samples),
		Trend:      trend,
	}
	if summary.Trend == nil {
		summary.Trend = []domain.AccuracyPoint{}
	}
	if latest != nil {
		d := domain.FormatDate(*latest)
		summary.LastUpdated = &d
	}

	if len(samples) == 0 {
		return summary, nil
	}

	var absErr, absPct, pct float64
	for _, sample := range samples {
		absErr += math.Abs(float64(sample.ForecastError))
		absPct += math.Abs(sample.ErrorPct)
		pct += sample.ErrorPct
	}
	n := float64(len(samples))
	summary.MAE = forecast.RoundOneDecimal(absErr / n)
	summary.MAPE = forecast.RoundOneDecimal(absPct / n)
	summary.Bias = forecast.RoundOneDecimal(pct / n)

	return summary, nil
}
