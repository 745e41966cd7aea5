package service

import (
	"context"
	"errors"
	"maps"
	"sort"
	"time"

	"github.com/andresuchdata/bakecast/internal/domain"
	"github.com/andresuchdata/bakecast/internal/forecast"
	"github.com/andresuchdata/bakecast/internal/repository"
)

var errInjected = errors.New("injected failure")

type actualKey struct {
	store, product int64
	date           time.Time
}

type forecastKey struct {
	store, product       int64
	forecastDate, target time.Time
}

type spKey struct {
	store, product int64
}

type sdKey struct {
	store int64
	date  time.Time
}

type memState struct {
	products  []domain.Product
	actuals   map[actualKey]domain.DailyActual
	forecasts map[forecastKey]domain.ForecastRecord
	contexts  map[sdKey]domain.ForecastContext
	learning  map[spKey]domain.LearningState
	plans     map[actualKey]domain.ProductionPlan
	accuracy  map[actualKey]domain.AccuracyRecord
	waste     map[int64]domain.WasteSubmission
	nextWaste int64
	audits    []domain.AuditEvent
}

func (s *memState) clone() *memState {
	c := *s
	c.products = append([]domain.Product(nil), s.products...)
	c.actuals = maps.Clone(s.actuals)
	c.forecasts = maps.Clone(s.forecasts)
	c.contexts = maps.Clone(s.contexts)
	c.learning = maps.Clone(s.learning)
	c.plans = maps.Clone(s.plans)
	c.accuracy = maps.Clone(s.accuracy)
	c.waste = maps.Clone(s.waste)
	c.audits = append([]domain.AuditEvent(nil), s.audits...)
	return &c
}

// memRepo is an in-memory repository.Repository. WithinTx works on a copy
// that replaces the state only when fn succeeds.
type memRepo struct {
	st     *memState
	failOn string
	failAt int
	calls  map[string]int
	txs    int
}

func newMemRepo() *memRepo {
	return &memRepo{calls: map[string]int{}, st: &memState{
		actuals:   map[actualKey]domain.DailyActual{},
		forecasts: map[forecastKey]domain.ForecastRecord{},
		contexts:  map[sdKey]domain.ForecastContext{},
		learning:  map[spKey]domain.LearningState{},
		plans:     map[actualKey]domain.ProductionPlan{},
		accuracy:  map[actualKey]domain.AccuracyRecord{},
		waste:     map[int64]domain.WasteSubmission{},
	}}
}

var _ repository.Repository = (*memRepo)(nil)

// fail returns errInjected once op has been called more than failAt times.
func (r *memRepo) fail(op string) error {
	r.calls[op]++
	if r.failOn == op && r.calls[op] > r.failAt {
		return errInjected
	}
	return nil
}

func (r *memRepo) WithinTx(ctx context.Context, fn func(tx repository.Repository) error) error {
	r.txs++
	tx := &memRepo{st: r.st.clone(), failOn: r.failOn, failAt: r.failAt, calls: r.calls}
	if err := fn(tx); err != nil {
		return err
	}
	r.st = tx.st
	return nil
}

func (r *memRepo) productName(id int64) string {
	for _, p := range r.st.products {
		if p.ID == id {
			return p.Name
		}
	}
	return ""
}

// test helpers

func (r *memRepo) addProduct(id int64, name string) {
	r.st.products = append(r.st.products, domain.Product{ID: id, Name: name, IsActive: true})
}

func (r *memRepo) addActual(store, product int64, date time.Time, produced, waste int) {
	r.st.actuals[actualKey{store, product, date}] = domain.DailyActual{
		StoreID: store, ProductID: product, Date: date, Produced: produced, Waste: waste,
	}
}

func (r *memRepo) records(store int64, target time.Time) []domain.ForecastRecord {
	var out []domain.ForecastRecord
	for k, v := range r.st.forecasts {
		if k.store == store && k.target.Equal(target) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// CatalogRepository

func (r *memRepo) ListStores(ctx context.Context, storeIDs []int64) ([]domain.Store, error) {
	if err := r.fail("ListStores"); err != nil {
		return nil, err
	}
	return []domain.Store{{ID: 1, Name: "Central", IsActive: true}}, nil
}

func (r *memRepo) ListActiveProducts(ctx context.Context, storeID int64) ([]domain.Product, error) {
	if err := r.fail("ListActiveProducts"); err != nil {
		return nil, err
	}
	var out []domain.Product
	for _, p := range r.st.products {
		if p.IsActive && (p.StoreID == nil || *p.StoreID == storeID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memRepo) CreateProduct(ctx context.Context, product *domain.Product) error {
	if err := r.fail("CreateProduct"); err != nil {
		return err
	}
	product.ID = int64(len(r.st.products) + 1)
	r.st.products = append(r.st.products, *product)
	return nil
}

func (r *memRepo) UpsertDailyActual(ctx context.Context, actual domain.DailyActual) error {
	if err := r.fail("UpsertDailyActual"); err != nil {
		return err
	}
	r.st.actuals[actualKey{actual.StoreID, actual.ProductID, actual.Date}] = actual
	return nil
}

func (r *memRepo) UpsertDailyWaste(ctx context.Context, storeID, productID int64, date time.Time, waste int) error {
	if err := r.fail("UpsertDailyWaste"); err != nil {
		return err
	}
	k := actualKey{storeID, productID, date}
	a := r.st.actuals[k]
	a.StoreID, a.ProductID, a.Date, a.Waste = storeID, productID, date, waste
	r.st.actuals[k] = a
	return nil
}

func (r *memRepo) SameWeekdayActuals(ctx context.Context, storeID, productID int64, weekday int, before time.Time, limit int) ([]domain.DailyActual, error) {
	if err := r.fail("SameWeekdayActuals"); err != nil {
		return nil, err
	}
	var out []domain.DailyActual
	for k, v := range r.st.actuals {
		if k.store == storeID && k.product == productID && k.date.Before(before) && forecast.Weekday(k.date) == weekday {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ForecastRepository

func (r *memRepo) UpsertForecastRecord(ctx context.Context, record *domain.ForecastRecord) error {
	if err := r.fail("UpsertForecastRecord"); err != nil {
		return err
	}
	rec := *record
	rec.ProductName = r.productName(rec.ProductID)
	rec.FinalQuantity, rec.ApprovedBy, rec.ApprovedAt = nil, nil, nil
	r.st.forecasts[forecastKey{rec.StoreID, rec.ProductID, rec.ForecastDate, rec.TargetDate}] = rec
	return nil
}

func (r *memRepo) ListForecastRecords(ctx context.Context, storeID int64, targetDate time.Time, status domain.ForecastStatus) ([]domain.ForecastRecord, error) {
	if err := r.fail("ListForecastRecords"); err != nil {
		return nil, err
	}
	latest := map[int64]domain.ForecastRecord{}
	for _, rec := range r.records(storeID, targetDate) {
		if status != "" && rec.Status != status {
			continue
		}
		if cur, ok := latest[rec.ProductID]; !ok || rec.ForecastDate.After(cur.ForecastDate) {
			latest[rec.ProductID] = rec
		}
	}
	out := make([]domain.ForecastRecord, 0, len(latest))
	for _, rec := range latest {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductName < out[j].ProductName })
	return out, nil
}

func (r *memRepo) ListForecastsByStatus(ctx context.Context, storeID int64, status domain.ForecastStatus) ([]domain.ForecastRecord, error) {
	var out []domain.ForecastRecord
	for _, rec := range r.st.forecasts {
		if rec.StoreID == storeID && rec.Status == status {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memRepo) GetForecastContext(ctx context.Context, storeID int64, targetDate time.Time) (*domain.ForecastContext, error) {
	fc, ok := r.st.contexts[sdKey{storeID, targetDate}]
	if !ok {
		return nil, nil
	}
	return &fc, nil
}

func (r *memRepo) UpsertForecastContext(ctx context.Context, fc domain.ForecastContext) error {
	r.st.contexts[sdKey{fc.StoreID, fc.TargetDate}] = fc
	return nil
}

func (r *memRepo) ApplyContext(ctx context.Context, storeID int64, targetDate time.Time, expectation domain.Expectation, multiplier float64) (int64, error) {
	if err := r.fail("ApplyContext"); err != nil {
		return 0, err
	}
	var n int64
	for k, rec := range r.st.forecasts {
		if k.store == storeID && k.target.Equal(targetDate) {
			rec.ContextExpectation = expectation
			rec.ContextMultiplier = multiplier
			rec.AdjustedQuantity = forecast.AdjustedQuantity(rec.PredictedQuantity, multiplier)
			r.st.forecasts[k] = rec
			n++
		}
	}
	return n, nil
}

func (r *memRepo) ApproveForecast(ctx context.Context, storeID, productID int64, targetDate time.Time, finalQuantity int, approvedBy string, approvedAt time.Time) (int64, error) {
	if err := r.fail("ApproveForecast"); err != nil {
		return 0, err
	}
	var n int64
	for k, rec := range r.st.forecasts {
		if k.store == storeID && k.product == productID && k.target.Equal(targetDate) {
			fq, by, at := finalQuantity, approvedBy, approvedAt
			rec.FinalQuantity, rec.ApprovedBy, rec.ApprovedAt = &fq, &by, &at
			rec.Status = domain.StatusApproved
			r.st.forecasts[k] = rec
			n++
		}
	}
	return n, nil
}

func (r *memRepo) UpsertProductionPlan(ctx context.Context, plan domain.ProductionPlan) error {
	if err := r.fail("UpsertProductionPlan"); err != nil {
		return err
	}
	r.st.plans[actualKey{plan.StoreID, plan.ProductID, plan.ProductionDate}] = plan
	return nil
}

func (r *memRepo) ForecastHistory(ctx context.Context, storeID int64, limit int) ([]domain.HistoryPoint, error) {
	return []domain.HistoryPoint{}, nil
}

// LearningRepository

func (r *memRepo) GetLearningState(ctx context.Context, storeID, productID int64) (*domain.LearningState, error) {
	st, ok := r.st.learning[spKey{storeID, productID}]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (r *memRepo) ListLearningStates(ctx context.Context, storeID int64) ([]domain.LearningState, error) {
	var out []domain.LearningState
	for k, v := range r.st.learning {
		if k.store == storeID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (r *memRepo) LearningSamples(ctx context.Context, storeID int64, since time.Time) ([]domain.LearningSample, error) {
	if err := r.fail("LearningSamples"); err != nil {
		return nil, err
	}
	var out []domain.LearningSample
	for _, rec := range r.st.forecasts {
		if rec.StoreID != storeID || rec.Status != domain.StatusApproved || rec.TargetDate.Before(since) {
			continue
		}
		if rec.ActualSold == nil || rec.ForecastError == nil || rec.ErrorPct == nil {
			continue
		}
		out = append(out, domain.LearningSample{
			ProductID: rec.ProductID, TargetDate: rec.TargetDate,
			ForecastError: *rec.ForecastError, ErrorPct: *rec.ErrorPct,
		})
	}
	return out, nil
}

func (r *memRepo) UpsertLearningState(ctx context.Context, state domain.LearningState) error {
	if err := r.fail("UpsertLearningState"); err != nil {
		return err
	}
	r.st.learning[spKey{state.StoreID, state.ProductID}] = state
	return nil
}

// AccuracyRepository

func (r *memRepo) PlannedVsActual(ctx context.Context, storeID int64, date time.Time) ([]domain.PlanActual, error) {
	var out []domain.PlanActual
	for k, plan := range r.st.plans {
		if k.store != storeID || !k.date.Equal(date) {
			continue
		}
		actual, ok := r.st.actuals[k]
		if !ok {
			continue
		}
		out = append(out, domain.PlanActual{
			ProductID: k.product, PlannedQuantity: plan.PlannedQuantity,
			Produced: actual.Produced, Waste: actual.Waste,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (r *memRepo) UpsertAccuracyRecord(ctx context.Context, record domain.AccuracyRecord) error {
	if err := r.fail("UpsertAccuracyRecord"); err != nil {
		return err
	}
	r.st.accuracy[actualKey{record.StoreID, record.ProductID, record.TargetDate}] = record
	return nil
}

func (r *memRepo) RecordForecastOutcome(ctx context.Context, storeID, productID int64, targetDate time.Time, actualSold int) (int64, error) {
	var n int64
	for k, rec := range r.st.forecasts {
		if k.store != storeID || k.product != productID || !k.target.Equal(targetDate) {
			continue
		}
		if rec.Status != domain.StatusApproved || rec.FinalQuantity == nil {
			continue
		}
		sold := actualSold
		errQty := sold - *rec.FinalQuantity
		errPct := forecast.ErrorPercent(errQty, *rec.FinalQuantity)
		rec.ActualSold, rec.ForecastError, rec.ErrorPct = &sold, &errQty, &errPct
		r.st.forecasts[k] = rec
		n++
	}
	return n, nil
}

func (r *memRepo) AccuracyTrend(ctx context.Context, storeID int64, since time.Time) ([]domain.AccuracyPoint, error) {
	return nil, nil
}

func (r *memRepo) LatestOutcomeDate(ctx context.Context, storeID int64) (*time.Time, error) {
	var latest *time.Time
	for _, rec := range r.st.forecasts {
		if rec.StoreID == storeID && rec.ActualSold != nil && (latest == nil || rec.TargetDate.After(*latest)) {
			d := rec.TargetDate
			latest = &d
		}
	}
	return latest, nil
}

// WasteRepository

func (r *memRepo) UpsertWasteSubmission(ctx context.Context, sub *domain.WasteSubmission) error {
	if err := r.fail("UpsertWasteSubmission"); err != nil {
		return err
	}
	for id, existing := range r.st.waste {
		if existing.StoreID == sub.StoreID && existing.ProductID == sub.ProductID && existing.WasteDate.Equal(sub.WasteDate) {
			sub.ID = id
		}
	}
	if sub.ID == 0 {
		r.st.nextWaste++
		sub.ID = r.st.nextWaste
	}
	sub.Status = domain.WastePending
	sub.ApprovedBy, sub.ApprovedAt = nil, nil
	r.st.waste[sub.ID] = *sub
	return nil
}

func (r *memRepo) ListPendingWaste(ctx context.Context, storeID int64, wasteDate time.Time) ([]domain.WasteSubmission, error) {
	var out []domain.WasteSubmission
	for _, sub := range r.st.waste {
		if sub.StoreID == storeID && sub.WasteDate.Equal(wasteDate) && sub.Status == domain.WastePending {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) ApproveWasteSubmission(ctx context.Context, submissionID, storeID int64, approvedBy string, approvedAt time.Time) (*domain.WasteSubmission, error) {
	sub, ok := r.st.waste[submissionID]
	if !ok || sub.StoreID != storeID || sub.Status != domain.WastePending {
		return nil, nil
	}
	by, at := approvedBy, approvedAt
	sub.Status, sub.ApprovedBy, sub.ApprovedAt = domain.WasteApproved, &by, &at
	r.st.waste[submissionID] = sub
	return &sub, nil
}

// AuditRepository

func (r *memRepo) InsertAuditEvent(ctx context.Context, event *domain.AuditEvent) error {
	if err := r.fail("InsertAuditEvent"); err != nil {
		return err
	}
	event.ID = int64(len(r.st.audits) + 1)
	r.st.audits = append(r.st.audits, *event)
	return nil
}

func (r *memRepo) ListAuditEvents(ctx context.Context, storeID int64, limit int) ([]domain.AuditEvent, error) {
	out := []domain.AuditEvent{}
	for i := len(r.st.audits) - 1; i >= 0 && len(out) < limit; i-- {
		if r.st.audits[i].StoreID == storeID {
			out = append(out, r.st.audits[i])
		}
	}
	return out, nil
}
