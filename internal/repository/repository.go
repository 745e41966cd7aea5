// internal/repository/repository.go
package repository

import (
	"context"
	"time"

	"github.com/andresuchdata/bakecast/internal/domain"
)

// CatalogRepository reads and writes stores, products and daily actuals.
type CatalogRepository interface {
	ListStores(ctx context.Context, storeIDs []int64) ([]domain.Store, error)
	ListActiveProducts(ctx context.Context, storeID int64) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product *domain.Product) error
	UpsertDailyActual(ctx context.Context, actual domain.DailyActual) error
	UpsertDailyWaste(ctx context.Context, storeID, productID int64, date time.Time, waste int) error
	// SameWeekdayActuals returns up to limit rows strictly before the given date
	// whose weekday (0=Monday) matches, newest first.
	SameWeekdayActuals(ctx context.Context, storeID, productID int64, weekday int, before time.Time, limit int) ([]domain.DailyActual, error)
}

// ForecastRepository persists forecast records, manager context and approvals.
type ForecastRepository interface {
	UpsertForecastRecord(ctx context.Context, record *domain.ForecastRecord) error
	ListForecastRecords(ctx context.Context, storeID int64, targetDate time.Time, status domain.ForecastStatus) ([]domain.ForecastRecord, error)
	ListForecastsByStatus(ctx context.Context, storeID int64, status domain.ForecastStatus) ([]domain.ForecastRecord, error)
	GetForecastContext(ctx context.Context, storeID int64, targetDate time.Time) (*domain.ForecastContext, error)
	UpsertForecastContext(ctx context.Context, fc domain.ForecastContext) error
	ApplyContext(ctx context.Context, storeID int64, targetDate time.Time, expectation domain.Expectation, multiplier float64) (int64, error)
	ApproveForecast(ctx context.Context, storeID, productID int64, targetDate time.Time, finalQuantity int, approvedBy string, approvedAt time.Time) (int64, error)
	UpsertProductionPlan(ctx context.Context, plan domain.ProductionPlan) error
	ForecastHistory(ctx context.Context, storeID int64, limit int) ([]domain.HistoryPoint, error)
}

// LearningRepository reads approved outcomes and stores bias estimates.
type LearningRepository interface {
	GetLearningState(ctx context.Context, storeID, productID int64) (*domain.LearningState, error)
	ListLearningStates(ctx context.Context, storeID int64) ([]domain.LearningState, error)
	LearningSamples(ctx context.Context, storeID int64, since time.Time) ([]domain.LearningSample, error)
	UpsertLearningState(ctx context.Context, state domain.LearningState) error
}

// AccuracyRepository reconciles plans and forecasts against realized sales.
type AccuracyRepository interface {
	PlannedVsActual(ctx context.Context, storeID int64, date time.Time) ([]domain.PlanActual, error)
	UpsertAccuracyRecord(ctx context.Context, record domain.AccuracyRecord) error
	RecordForecastOutcome(ctx context.Context, storeID, productID int64, targetDate time.Time, actualSold int) (int64, error)
	AccuracyTrend(ctx context.Context, storeID int64, since time.Time) ([]domain.AccuracyPoint, error)
	LatestOutcomeDate(ctx context.Context, storeID int64) (*time.Time, error)
}

// WasteRepository stores waste submissions and their review state.
type WasteRepository interface {
	UpsertWasteSubmission(ctx context.Context, sub *domain.WasteSubmission) error
	ListPendingWaste(ctx context.Context, storeID int64, wasteDate time.Time) ([]domain.WasteSubmission, error)
	ApproveWasteSubmission(ctx context.Context, submissionID, storeID int64, approvedBy string, approvedAt time.Time) (*domain.WasteSubmission, error)
}

// AuditRepository appends to and reads the audit trail.
type AuditRepository interface {
	InsertAuditEvent(ctx context.Context, event *domain.AuditEvent) error
	ListAuditEvents(ctx context.Context, storeID int64, limit int) ([]domain.AuditEvent, error)
}

// Repository is the store client shared by every pipeline component. WithinTx
// runs fn against a transaction-bound Repository; fn's error rolls everything back.
type Repository interface {
	CatalogRepository
	ForecastRepository
	LearningRepository
	AccuracyRepository
	WasteRepository
	AuditRepository

	WithinTx(ctx context.Context, fn func(tx Repository) error) error
}
