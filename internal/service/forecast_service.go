package service

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/bakecast/internal/cache"
	"github.com/andresuchdata/bakecast/internal/domain"
	"github.com/andresuchdata/bakecast/internal/forecast"
	"github.com/andresuchdata/bakecast/internal/notify"
	"github.com/andresuchdata/bakecast/internal/repository"
	"github.com/andresuchdata/bakecast/internal/storage"
	"github.com/rs/zerolog/log"
)

const (
	SourceGenerated = "generated"
	SourceStored    = "stored"

	NotEnoughData = "not enough data"
)

type ForecastService struct {
	repo         repository.Repository
	calc         *forecast.Calculator
	cache        cache.ForecastCache
	notifier     notify.Notifier
	archiver     *storage.PlanArchiver
	modelVersion string
	now          func() time.Time
}

type ForecastOption func(*ForecastService)

func WithForecastCache(c cache.ForecastCache) ForecastOption {
	return func(s *ForecastService) { s.cache = c }
}

func WithNotifier(n notify.Notifier) ForecastOption {
	return func(s *ForecastService) { s.notifier = n }
}

func WithPlanArchiver(a *storage.PlanArchiver) ForecastOption {
	return func(s *ForecastService) { s.archiver = a }
}

func WithModelVersion(v string) ForecastOption {
	return func(s *ForecastService) { s.modelVersion = v }
}

// WithClock overrides time.Now; forecast_date and approval stamps come from it.
func WithClock(now func() time.Time) ForecastOption {
	return func(s *ForecastService) { s.now = now }
}

func NewForecastService(repo repository.Repository, calc *forecast.Calculator, opts ...ForecastOption) *ForecastService {
	s := &ForecastService{
		repo:         repo,
		calc:         calc,
		cache:        cache.NewNoopForecastCache(),
		notifier:     notify.Noop{},
		modelVersion: "weekday-avg-v2",
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateRequest asks for a fresh forecast. Expectation may be empty.
// KeepApproved leaves products already approved for the date untouched
// instead of resetting them to pending.
type GenerateRequest struct {
	StoreID      int64
	TargetDate   time.Time
	Expectation  string
	KeepApproved bool
}

func validateStoreDate(storeID int64, targetDate time.Time) error {
	if storeID <= 0 {
		return domain.InvalidInput("store_id is required")
	}
	if targetDate.IsZero() {
		return domain.InvalidInput("target_date is required")
	}
	return nil
}

// Generate computes a forecast for every active product of the store and
// persists all of them as pending records in one transaction.
func (s *ForecastService) Generate(ctx context.Context, req GenerateRequest) (*domain.ForecastResult, error) {
	if err := validateStoreDate(req.StoreID, req.TargetDate); err != nil {
		return nil, err
	}

	targetDate := domain.Day(req.TargetDate)
	forecastDate := domain.Day(s.now())
	expectation := domain.ParseExpectation(req.Expectation)
	policy := s.calc.Policy()
	weekday := forecast.Weekday(targetDate)

	result := &domain.ForecastResult{
		StoreID:     req.StoreID,
		TargetDate:  domain.FormatDate(targetDate),
		Source:      SourceGenerated,
		Expectation: expectation,
		Multiplier:  expectation.Multiplier(),
		Products:    []domain.ForecastEntry{},
	}

	err := s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		products, err := tx.ListActiveProducts(ctx, req.StoreID)
		if err != nil {
			return err
		}

		approved := map[int64]bool{}
		if req.KeepApproved {
			records, err := tx.ListForecastRecords(ctx, req.StoreID, targetDate, "")
			if err != nil {
				return err
			}
			for _, r := range records {
				if r.Status == domain.StatusApproved {
					approved[r.ProductID] = true
				}
			}
		}

		for _, product := range products {
			if approved[product.ID] {
				result.KeptApproved = append(result.KeptApproved, product.ID)
				continue
			}
			samples, err := tx.SameWeekdayActuals(ctx, req.StoreID, product.ID, weekday, targetDate, policy.SampleLimit)
			if err != nil {
				return err
			}

			var bias float64
			state, err := tx.GetLearningState(ctx, req.StoreID, product.ID)
			if err != nil {
				return err
			}
			if state != nil {
				bias = state.AvgErrorPct
			}

			pred, ok := s.calc.Predict(samples, expectation, bias)
			if !ok {
				log.Debug().
					Int64("store_id", req.StoreID).
					Int64("product_id", product.ID).
					Msg("no same-weekday history, product skipped")
				continue
			}

			var reason *string
			if pred.LearningAdjustment != 0 {
				r := forecast.BiasCorrectionReason
				reason = &r
			}

			record := &domain.ForecastRecord{
				StoreID:            req.StoreID,
				ProductID:          product.ID,
				ForecastDate:       forecastDate,
				TargetDate:         targetDate,
				PredictedQuantity:  pred.Quantity,
				ContextExpectation: expectation,
				ContextMultiplier:  pred.Multiplier,
				AdjustedQuantity:   pred.Quantity,
				Status:             domain.StatusPending,
				Confidence:         pred.Confidence,
				AvgSold:            pred.AvgSold,
				LearningAdjustment: pred.LearningAdjustment,
				AdjustmentReason:   reason,
				ModelVersion:       s.modelVersion,
			}
			if err := tx.UpsertForecastRecord(ctx, record); err != nil {
				return err
			}

			result.Products = append(result.Products, domain.ForecastEntry{
				ProductID:          product.ID,
				ProductName:        product.Name,
				PredictedQuantity:  pred.Quantity,
				AdjustedQuantity:   pred.Quantity,
				AvgSold:            pred.AvgSold,
				SampleSize:         pred.SampleSize,
				Confidence:         pred.Confidence,
				Expectation:        expectation,
				MultiplierUsed:     pred.Multiplier,
				LearningAdjustment: pred.LearningAdjustment,
				AdjustmentReason:   reason,
			})
		}
		return nil
	})
	if err != nil {
		return nil, domain.Persistence("generate forecast", err)
	}

	if len(result.Products) == 0 && len(result.KeptApproved) == 0 {
		result.Message = NotEnoughData
	}

	log.Info().
		Int64("store_id", req.StoreID).
		Str("target_date", result.TargetDate).
		Str("expectation", string(expectation)).
		Int("products", len(result.Products)).
		Int("kept_approved", len(result.KeptApproved)).
		Msg("forecast generated")

	s.refreshCache(ctx, req.StoreID, result)
	return result, nil
}

// Get returns the stored forecast for the date, generating one when nothing
// is stored yet or when regenerate is set.
func (s *ForecastService) Get(ctx context.Context, req GenerateRequest, regenerate bool) (*domain.ForecastResult, error) {
	if err := validateStoreDate(req.StoreID, req.TargetDate); err != nil {
		return nil, err
	}
	if regenerate {
		return s.Generate(ctx, req)
	}

	targetDate := domain.Day(req.TargetDate)
	if cached, ok, err := s.cache.Get(ctx, req.StoreID, targetDate); err != nil {
		log.Warn().Err(err).Int64("store_id", req.StoreID).Msg("forecast cache read failed")
	} else if ok {
		cached.Source = SourceStored
		return cached, nil
	}

	records, err := s.repo.ListForecastRecords(ctx, req.StoreID, targetDate, "")
	if err != nil {
		return nil, domain.Persistence("list forecast records", err)
	}
	if len(records) == 0 {
		return s.Generate(ctx, req)
	}

	result := storedResult(req.StoreID, targetDate, records)
	if err := s.cache.Set(ctx, result); err != nil {
		log.Warn().Err(err).Int64("store_id", req.StoreID).Msg("forecast cache write failed")
	}
	return result, nil
}

func storedResult(storeID int64, targetDate time.Time, records []domain.ForecastRecord) *domain.ForecastResult {
	result := &domain.ForecastResult{
		StoreID:     storeID,
		TargetDate:  domain.FormatDate(targetDate),
		Source:      SourceStored,
		Expectation: records[0].ContextExpectation,
		Multiplier:  records[0].ContextMultiplier,
		Products:    make([]domain.ForecastEntry, 0, len(records)),
	}
	for _, r := range records {
		result.Products = append(result.Products, domain.ForecastEntry{
			ProductID:          r.ProductID,
			ProductName:        r.ProductName,
			PredictedQuantity:  r.PredictedQuantity,
			AdjustedQuantity:   r.AdjustedQuantity,
			AvgSold:            r.AvgSold,
			Confidence:         r.Confidence,
			Expectation:        r.ContextExpectation,
			MultiplierUsed:     r.ContextMultiplier,
			LearningAdjustment: r.LearningAdjustment,
			AdjustmentReason:   r.AdjustmentReason,
		})
	}
	return result
}

// ContextRequest is a manager's outlook for a target date.
type ContextRequest struct {
	StoreID     int64
	TargetDate  time.Time
	Expectation string
	Reason      *string
	Notes       *string
}

// SaveContext stores the manager's outlook. Only the four known labels are accepted here.
func (s *ForecastService) SaveContext(ctx context.Context, req ContextRequest) (*domain.ForecastContext, error) {
	if err := validateStoreDate(req.StoreID, req.TargetDate); err != nil {
		return nil, err
	}
	if !domain.IsKnownExpectation(req.Expectation) {
		return nil, domain.InvalidInput("expectation must be one of busy, normal, slow, unsure")
	}

	fc := domain.ForecastContext{
		StoreID:     req.StoreID,
		TargetDate:  domain.Day(req.TargetDate),
		Expectation: domain.ParseExpectation(req.Expectation),
		Reason:      req.Reason,
		Notes:       req.Notes,
	}
	if err := s.repo.UpsertForecastContext(ctx, fc); err != nil {
		return nil, domain.Persistence("save forecast context", err)
	}

	s.invalidate(ctx, req.StoreID)
	return &fc, nil
}

// ApplyContextResult reports what ApplyContext wrote.
type ApplyContextResult struct {
	StoreID     int64              `json:"store_id"`
	TargetDate  string             `json:"target_date"`
	Expectation domain.Expectation `json:"expectation"`
	Multiplier  float64            `json:"multiplier"`
	Updated     int64              `json:"updated"`
}

// ApplyContext re-derives adjusted_quantity on stored records from the saved
// context, treating a missing context as normal.
func (s *ForecastService) ApplyContext(ctx context.Context, storeID int64, targetDate time.Time) (*ApplyContextResult, error) {
	if err := validateStoreDate(storeID, targetDate); err != nil {
		return nil, err
	}
	targetDate = domain.Day(targetDate)

	result := &ApplyContextResult{StoreID: storeID, TargetDate: domain.FormatDate(targetDate)}
	err := s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		fc, err := tx.GetForecastContext(ctx, storeID, targetDate)
		if err != nil {
			return err
		}

		expectation := domain.ExpectationNormal
		if fc != nil {
			expectation = domain.ParseExpectation(string(fc.Expectation))
		}

		updated, err := tx.ApplyContext(ctx, storeID, targetDate, expectation, expectation.Multiplier())
		if err != nil {
			return err
		}

		result.Expectation = expectation
		result.Multiplier = expectation.Multiplier()
		result.Updated = updated
		return nil
	})
	if err != nil {
		return nil, domain.Persistence("apply forecast context", err)
	}

	s.invalidate(ctx, storeID)
	return result, nil
}

// ApproveRequest carries a manager's final quantities for a target date.
type ApproveRequest struct {
	StoreID    int64
	TargetDate time.Time
	ApprovedBy string
	Updates    []domain.ApprovalUpdate
}

// ApprovalResult lists approved products and products without a record.
type ApprovalResult struct {
	StoreID    int64     `json:"store_id"`
	TargetDate string    `json:"target_date"`
	ApprovedBy string    `json:"approved_by"`
	ApprovedAt time.Time `json:"approved_at"`
	Approved   int       `json:"approved"`
	Missing    []int64   `json:"missing_product_ids"`
	ArchiveKey string    `json:"archive_key,omitempty"`
	Message    string    `json:"message,omitempty"`
}

func (r ApproveRequest) validate() error {
	if err := validateStoreDate(r.StoreID, r.TargetDate); err != nil {
		return err
	}
	if r.ApprovedBy == "" {
		return domain.InvalidInput("approved_by is required")
	}
	if len(r.Updates) == 0 {
		return domain.InvalidInput("updates must not be empty")
	}
	seen := make(map[int64]struct{}, len(r.Updates))
	for _, u := range r.Updates {
		if u.ProductID <= 0 {
			return domain.InvalidInput("product_id is required for every update")
		}
		if u.FinalQuantity < 0 {
			return domain.InvalidInput("final_quantity for product %d must not be negative", u.ProductID)
		}
		if _, dup := seen[u.ProductID]; dup {
			return domain.InvalidInput("product %d appears more than once", u.ProductID)
		}
		seen[u.ProductID] = struct{}{}
	}
	return nil
}

// Approve locks the final quantities and writes the production plan in the
// same transaction. Products without a forecast record are reported, not
// approved. Approving again with the same quantities converges on the same state.
func (s *ForecastService) Approve(ctx context.Context, req ApproveRequest) (*ApprovalResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	targetDate := domain.Day(req.TargetDate)
	approvedAt := s.now().UTC()
	result := &ApprovalResult{
		StoreID:    req.StoreID,
		TargetDate: domain.FormatDate(targetDate),
		ApprovedBy: req.ApprovedBy,
		ApprovedAt: approvedAt,
		Missing:    []int64{},
	}

	var plans []domain.ProductionPlan
	err := s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		for _, u := range req.Updates {
			n, err := tx.ApproveForecast(ctx, req.StoreID, u.ProductID, targetDate, u.FinalQuantity, req.ApprovedBy, approvedAt)
			if err != nil {
				return err
			}
			if n == 0 {
				result.Missing = append(result.Missing, u.ProductID)
				continue
			}

			plan := domain.ProductionPlan{
				StoreID:         req.StoreID,
				ProductID:       u.ProductID,
				ProductionDate:  targetDate,
				PlannedQuantity: u.FinalQuantity,
				CreatedBy:       req.ApprovedBy,
			}
			if err := tx.UpsertProductionPlan(ctx, plan); err != nil {
				return err
			}
			plans = append(plans, plan)
		}
		if len(plans) == 0 {
			return nil
		}
		return tx.InsertAuditEvent(ctx, approvalAudit(req.StoreID, targetDate, req.ApprovedBy, plans, result.Missing))
	})
	if err != nil {
		return nil, domain.Persistence("approve forecast", err)
	}

	result.Approved = len(plans)
	if result.Approved == 0 {
		result.Message = "no forecast records to approve"
		return result, nil
	}

	log.Info().
		Int64("store_id", req.StoreID).
		Str("target_date", result.TargetDate).
		Str("approved_by", req.ApprovedBy).
		Int("approved", result.Approved).
		Ints64("missing", result.Missing).
		Msg("forecast approved")

	s.invalidate(ctx, req.StoreID)
	s.afterApproval(ctx, result, targetDate, plans)
	return result, nil
}

func approvalAudit(storeID int64, targetDate time.Time, approvedBy string, plans []domain.ProductionPlan, missing []int64) *domain.AuditEvent {
	ids := make([]int64, 0, len(plans))
	total := 0
	for _, p := range plans {
		ids = append(ids, p.ProductID)
		total += p.PlannedQuantity
	}
	return &domain.AuditEvent{
		StoreID:      storeID,
		Action:       domain.AuditForecastApproved,
		ResourceType: "forecast",
		ResourceDate: targetDate,
		Actor:        approvedBy,
		Details: map[string]any{
			"approved":       len(plans),
			"product_ids":    ids,
			"missing":        missing,
			"total_quantity": total,
		},
	}
}

// afterApproval runs the side effects that must not undo a committed approval.
func (s *ForecastService) afterApproval(ctx context.Context, result *ApprovalResult, targetDate time.Time, plans []domain.ProductionPlan) {
	if s.archiver.Enabled() {
		key, err := s.archiver.Archive(ctx, result.StoreID, targetDate, result.ApprovedBy, result.ApprovedAt, plans)
		if err != nil {
			log.Error().Err(err).Int64("store_id", result.StoreID).Msg("failed to archive production plan")
		} else {
			result.ArchiveKey = key
		}
	}

	event := notify.Event{
		Type:       notify.EventForecastApproved,
		StoreID:    result.StoreID,
		TargetDate: result.TargetDate,
		Actor:      result.ApprovedBy,
		OccurredAt: result.ApprovedAt,
		Message:    fmt.Sprintf("%s approved %d products for %s", result.ApprovedBy, result.Approved, result.TargetDate),
		Metadata:   map[string]any{"archive_key": result.ArchiveKey},
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		log.Error().Err(err).Int64("store_id", result.StoreID).Msg("failed to send approval notification")
	}
}

// ListForecasts returns the latest record per product for the date; an empty status lists all.
func (s *ForecastService) ListForecasts(ctx context.Context, storeID int64, targetDate time.Time, status domain.ForecastStatus) ([]domain.ForecastRecord, error) {
	if err := validateStoreDate(storeID, targetDate); err != nil {
		return nil, err
	}
	records, err := s.repo.ListForecastRecords(ctx, storeID, domain.Day(targetDate), status)
	if err != nil {
		return nil, domain.Persistence("list forecasts", err)
	}
	return records, nil
}

func (s *ForecastService) ListByStatus(ctx context.Context, storeID int64, status domain.ForecastStatus) ([]domain.ForecastRecord, error) {
	if storeID <= 0 {
		return nil, domain.InvalidInput("store_id is required")
	}
	records, err := s.repo.ListForecastsByStatus(ctx, storeID, status)
	if err != nil {
		return nil, domain.Persistence("list forecasts by status", err)
	}
	return records, nil
}

func (s *ForecastService) History(ctx context.Context, storeID int64, limit int) ([]domain.HistoryPoint, error) {
	if storeID <= 0 {
		return nil, domain.InvalidInput("store_id is required")
	}
	points, err := s.repo.ForecastHistory(ctx, storeID, limit)
	if err != nil {
		return nil, domain.Persistence("forecast history", err)
	}
	return points, nil
}

// ArchivedPlans lists the plan documents archived for a store and date. It is
// empty when archiving is off.
func (s *ForecastService) ArchivedPlans(ctx context.Context, storeID int64, targetDate time.Time) ([]storage.ObjectInfo, error) {
	if err := validateStoreDate(storeID, targetDate); err != nil {
		return nil, err
	}
	objects, err := s.archiver.History(ctx, storeID, domain.Day(targetDate))
	if err != nil {
		return nil, domain.Persistence("list archived plans", err)
	}
	if objects == nil {
		objects = []storage.ObjectInfo{}
	}
	return objects, nil
}

func (s *ForecastService) refreshCache(ctx context.Context, storeID int64, result *domain.ForecastResult) {
	s.invalidate(ctx, storeID)
	if len(result.Products) == 0 || len(result.KeptApproved) > 0 {
		return
	}
	// later reads are served from storage, not regenerated
	stored := *result
	stored.Source = SourceStored
	if err := s.cache.Set(ctx, &stored); err != nil {
		log.Warn().Err(err).Int64("store_id", storeID).Msg("forecast cache write failed")
	}
}

func (s *ForecastService) invalidate(ctx context.Context, storeID int64) {
	if err := s.cache.InvalidateStore(ctx, storeID); err != nil {
		log.Warn().Err(err).Int64("store_id", storeID).Msg("forecast cache invalidation failed")
	}
}
