package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andresuchdata/bakecast/internal/config"
	"github.com/andresuchdata/bakecast/internal/domain"
	"github.com/andresuchdata/bakecast/internal/forecast"
	"github.com/andresuchdata/bakecast/internal/notify"
	"github.com/andresuchdata/bakecast/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	// Thursday; forecasts target Friday 2026-10-16.
	today  = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	friday = time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
)

const (
	storeID  = int64(1)
	glazedID = int64(10)
	ryeID    = int64(20)
)

func fixedClock() time.Time { return today }

// seedFridays records one sold value per previous Friday, newest first.
func seedFridays(repo *memRepo, productID int64, sold ...int) {
	for i, v := range sold {
		day := friday.AddDate(0, 0, -7*(i+1))
		repo.addActual(storeID, productID, day, v+5, 5)
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(_ context.Context, e notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

type memObjects struct {
	keys []string
}

func (m *memObjects) ListObjects(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	var out []storage.ObjectInfo
	for _, k := range m.keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.ObjectInfo{Key: k})
		}
	}
	return out, nil
}

// memCache is a ForecastCache that keeps results in a map, like Redis would
// after a JSON round trip.
type memCache struct {
	entries map[string]domain.ForecastResult
	hits    int
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]domain.ForecastResult{}}
}

func (c *memCache) key(storeID int64, date string) string {
	return fmt.Sprintf("%d:%s", storeID, date)
}

func (c *memCache) Get(_ context.Context, storeID int64, targetDate time.Time) (*domain.ForecastResult, bool, error) {
	r, ok := c.entries[c.key(storeID, domain.FormatDate(targetDate))]
	if !ok {
		return nil, false, nil
	}
	c.hits++
	return &r, true, nil
}

func (c *memCache) Set(_ context.Context, result *domain.ForecastResult) error {
	c.entries[c.key(result.StoreID, result.TargetDate)] = *result
	return nil
}

func (c *memCache) InvalidateStore(_ context.Context, storeID int64) error {
	prefix := fmt.Sprintf("%d:", storeID)
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}

// hangingWebhook returns the production notifier pointed at an endpoint
// that holds every request open until the test ends.
func hangingWebhook(t *testing.T) (notify.Notifier, *atomic.Int32) {
	t.Helper()
	release := make(chan struct{})
	hits := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))

	n := notify.New(config.NotifyConfig{WebhookURL: srv.URL, TimeoutSeconds: 5})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_ = notify.Close(ctx, n)
		close(release)
		srv.Close()
	})
	return n, hits
}

func (m *memObjects) UploadObject(_ context.Context, key string, _ []byte) error {
	m.keys = append(m.keys, key)
	return nil
}

func newForecastService(repo *memRepo, opts ...ForecastOption) *ForecastService {
	opts = append([]ForecastOption{WithClock(fixedClock)}, opts...)
	return NewForecastService(repo, forecast.NewCalculator(forecast.DefaultPolicy()), opts...)
}

func glazedRepo() *memRepo {
	repo := newMemRepo()
	repo.addProduct(glazedID, "Glazed Donut")
	seedFridays(repo, glazedID, 80, 85, 90, 75, 88, 82, 79, 91, 86)
	return repo
}

func TestGenerateGlazedDonutEndToEnd(t *testing.T) {
	repo := glazedRepo()
	// other weekdays and the target date itself never count
	repo.addActual(storeID, glazedID, friday.AddDate(0, 0, -1), 500, 0)
	repo.addActual(storeID, glazedID, friday, 500, 0)
	svc := newForecastService(repo)

	result, err := svc.Generate(context.Background(), GenerateRequest{StoreID: storeID, TargetDate: friday, Expectation: "busy"})
	require.NoError(t, err)
	require.Len(t, result.Products, 1)

	entry := result.Products[0]
	assert.Equal(t, SourceGenerated, result.Source)
	assert.Equal(t, "2026-10-16", result.TargetDate)
	assert.InDelta(t, 84.0, entry.AvgSold, 1e-9)
	assert.Equal(t, 9, entry.SampleSize)
	assert.Equal(t, domain.ConfidenceHigh, entry.Confidence)
	assert.InDelta(t, 1.15, entry.MultiplierUsed, 1e-9)
	assert.Equal(t, 101, entry.PredictedQuantity)
	assert.Equal(t, entry.PredictedQuantity, entry.AdjustedQuantity)
	assert.Equal(t, 0, entry.LearningAdjustment)
	assert.Nil(t, entry.AdjustmentReason)
	assert.Empty(t, result.Message)

	records := repo.records(storeID, friday)
	require.Len(t, records, 1)
	assert.Equal(t, domain.StatusPending, records[0].Status)
	assert.Equal(t, domain.Day(today), records[0].ForecastDate)
	assert.Nil(t, records[0].FinalQuantity)
	assert.Equal(t, "weekday-avg-v2", records[0].ModelVersion)
}

func TestGenerateAverageEightyThreeBusyYieldsHundred(t *testing.T) {
	repo := newMemRepo()
	repo.addProduct(glazedID, "Glazed Donut")
	seedFridays(repo, glazedID, 83, 83, 83, 83, 83, 83, 83, 83, 83)
	svc := newForecastService(repo)

	result, err := svc.Generate(context.Background(), GenerateRequest{StoreID: storeID, TargetDate: friday, Expectation: "busy"})
	require.NoError(t, err)
	require.Len(t, result.Products, 1)
	assert.Equal(t, 100, result.Products[0].PredictedQuantity)
	assert.Equal(t, domain.ConfidenceHigh, result.Products[0].Confidence)
}

func TestGenerateRequiresStoreAndDate(t *testing.T) {
	repo := glazedRepo()
	svc := newForecastService(repo)

	_, err := svc.Generate(context.Background(), GenerateRequest{TargetDate: friday})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Generate(context.Background(), GenerateRequest{StoreID: storeID})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Zero(t, repo.txs)
	assert.Empty(t, repo.st.forecasts)
}

func TestGenerateUnknownExpectationFallsBackToNormal(t *testing.T) {
	repo := newMemRepo()
	repo.addProduct(glazedID, "Glazed Donut")
	seedFridays(repo, glazedID, 100, 100, 100)
	svc := newForecastService(repo)

	result, err := svc.Generate(context.Background(), GenerateRequest{StoreID: storeID, TargetDate: friday, Expectation: "festival"})
	require.NoError(t, err)
	assert.Equal(t, domain.ExpectationNormal, result.Expectation)
	require.Len(t, result.Products, 1)
	assert.Equal(t, 105, result.Products[0].PredictedQuantity)
	assert.Equal(t, domain.ConfidenceLow, result.Products[0].Confidence)
}

func TestGenerateSkipsProductsWithoutHistory(t *testing.T) {
	repo := glazedRepo()
	repo.addProduct(ryeID, "Rye Loaf")
	svc := newForecastService(repo)

	result, err := svc.Generate(context.Background(), GenerateRequest{StoreID: storeID, TargetDate: friday})
	require.NoError(t, err)
	require.Len(t, result.Products, 1)
	assert.Equal(t, glazedID, result.Products[0].ProductID)
	assert.Len(t, repo.records(storeID, friday), 1)
}

func TestGenerateWithoutAnyHistoryReportsNotEnoughData(t *testing.T) {
	repo := newMemRepo()
	repo.addProduct(ryeID, "Rye Loaf")
	svc := newForecastService(repo)

	result, err := svc.Generate(context.Background(), GenerateRequest{StoreID: storeID, TargetDate: friday})
	require.NoError(t, err)
	assert.Empty(t, result.Products)
	assert.NotNil(t, result.Products)
	assert.Equal(t, NotEnoughData, result.Message)
}

func TestGenerateAppliesClampedLearningBias(t *testing.T) {
	repo := newMemRepo()
	repo.addProduct(glazedID, "Glazed Donut")
	seedFridays(repo, glazedID, 100, 100, 100)
	repo.st.learning[spKey{storeID, glazedID}] = domain.LearningState{StoreID: storeID, ProductID: glazedID, AvgErrorPct: 0.40}
	svc := newForecastService(repo)

	result, err := svc.Generate(context.Background(), GenerateRequest{StoreID: storeID, TargetDate: friday})
	require.NoError(t, err)
	require.Len(t, result.Products, 1)

	entry := result.Products[0]
	// 105 buffered, bias capped at 15%: round(15.75) = 16
	assert.Equal(t, 16, entry.LearningAdjustment)
	assert.Equal(t, 121, entry.PredictedQuantity)
	require.NotNil(t, entry.AdjustmentReason)
	assert.Equal(t, forecast.BiasCorrectionReason, *entry.AdjustmentReason)
}

func TestGenerateRollsBackWholeBatch(t *testing.T) {
	repo := glazedRepo()
	repo.addProduct(ryeID, "Rye Loaf")
	seedFridays(repo, ryeID, 20, 22, 24)
	repo.failOn, repo.failAt = "UpsertForecastRecord", 1
	svc := newForecastService(repo)

	_, err := svc.Generate(context.Background(), GenerateRequest{StoreID: storeID, TargetDate: friday})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorIs(t, err, errInjected)
	assert.Empty(t, repo.st.forecasts)
}

func TestRegenerateResetsApproval(t *testing.T) {
	repo := glazedRepo()
	svc := newForecastService(repo)
	ctx := context.Background()

	_, err := svc.Generate(ctx, GenerateRequest{StoreID: storeID, TargetDate: friday})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, ApproveRequest{StoreID: storeID, TargetDate: friday, ApprovedBy: "maria",
		Updates: []domain.ApprovalUpdate{{ProductID: glazedID, FinalQuantity: 90}}})
	require.NoError(t, err)

	_, err = svc.Generate(ctx, GenerateRequest{StoreID: storeID, TargetDate: friday})
	require.NoError(t, err)

	records := repo.records(storeID, friday)
	require.Len(t, records, 1)
	assert.Equal(t, domain.StatusPending, records[0].Status)
	assert.Nil(t, records[0].FinalQuantity)
}

func TestGetGeneratesThenFetchesStored(t *testing.T) {
	repo := glazedRepo()
	svc := newForecastService(repo)
	ctx := context.Background()
	req := GenerateRequest{StoreID: storeID, TargetDate: friday, Expectation: "busy"}

	first, err := svc.Get(ctx, req, false)
	require.NoError(t, err)
	assert.Equal(t, SourceGenerated, first.Source)

	second, err := svc.Get(ctx, req, false)
	require.NoError(t, err)
	assert.Equal(t, SourceStored, second.Source)
	require.Len(t, second.Products, 1)
	assert.Equal(t, "Glazed Donut", second.Products[0].ProductName)
	assert.Equal(t, 101, second.Products[0].PredictedQuantity)
	assert.Equal(t, domain.ExpectationBusy, second.Expectation)

	third, err := svc.Get(ctx, GenerateRequest{StoreID: storeID, TargetDate: friday, Expectation: "slow"}, true)
	require.NoError(t, err)
	assert.Equal(t, SourceGenerated, third.Source)
	assert.Equal(t, domain.ExpectationSlow, third.Expectation)
}

func TestApplyContextUsesSavedExpectation(t *testing.T) {
	repo := glazedRepo()
	svc := newForecastService(repo)
	ctx := context.Background()

	gen, err := svc.Generate(ctx, GenerateRequest{StoreID: storeID, TargetDate: friday})
	require.NoError(t, err)
	predicted := gen.Products[0].PredictedQuantity
	require.Equal(t, 88, predicted) // round(84 × 1.05)

	_, err = svc.SaveContext(ctx, ContextRequest{StoreID: storeID, TargetDate: friday, Expectation: "busy"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		res, err := svc.ApplyContext(ctx, storeID, friday)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Updated)
		assert.Equal(t, domain.ExpectationBusy, res.Expectation)

		rec := repo.records(storeID, friday)[0]
		// round(88 × 1.15) = round(101.2) = 101, unchanged on reapply
		assert.Equal(t, 101, rec.AdjustedQuantity)
		assert.Equal(t, predicted, rec.PredictedQuantity)
		assert.InDelta(t, 1.15, rec.ContextMultiplier, 1e-9)
	}
}

func TestApplyContextWithoutSavedContextIsNormal(t *testing.T) {
	repo := glazedRepo()
	svc := newForecastService(repo)
	ctx := context.Background()

	_, err := svc.Generate(ctx, GenerateRequest{StoreID: storeID, TargetDate: friday, Expectation: "busy"})
	require.NoError(t, err)

	res, err := svc.ApplyContext(ctx, storeID, friday)
	require.NoError(t, err)
	assert.Equal(t, domain.ExpectationNormal, res.Expectation)

	rec := repo.records(storeID, friday)[0]
	assert.Equal(t, rec.PredictedQuantity, rec.AdjustedQuantity)
}

func TestSaveContextRejectsUnknownLabel(t *testing.T) {
	svc := newForecastService(newMemRepo())

	_, err := svc.SaveContext(context.Background(), ContextRequest{StoreID: storeID, TargetDate: friday, Expectation: "festival"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestApproveIsIdempotentAndWritesPlan(t *testing.T) {
	repo := glazedRepo()
	repo.addProduct(ryeID, "Rye Loaf")
	seedFridays(repo, ryeID, 20, 22, 24)
	notifier := &recordingNotifier{}
	objects := &memObjects{}
	svc := newForecastService(repo, WithNotifier(notifier), WithPlanArchiver(storage.NewPlanArchiver(objects)))
	ctx := context.Background()

	_, err := svc.Generate(ctx, GenerateRequest{StoreID: storeID, TargetDate: friday})
	require.NoError(t, err)

	req := ApproveRequest{
		StoreID:    storeID,
		TargetDate: friday,
		ApprovedBy: "maria",
		Updates: []domain.ApprovalUpdate{
			{ProductID: glazedID, FinalQuantity: 95},
			{ProductID: 999, FinalQuantity: 5},
		},
	}

	for i := 0; i < 2; i++ {
		res, err := svc.Approve(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Approved)
		assert.Equal(t, []int64{999}, res.Missing)

		records := repo.records(storeID, friday)
		require.Len(t, records, 2)

		glazed, rye := records[0], records[1]
		assert.Equal(t, domain.StatusApproved, glazed.Status)
		require.NotNil(t, glazed.FinalQuantity)
		assert.Equal(t, 95, *glazed.FinalQuantity)
		require.NotNil(t, glazed.ApprovedBy)
		assert.Equal(t, "maria", *glazed.ApprovedBy)
		assert.Equal(t, today, *glazed.ApprovedAt)

		assert.Equal(t, domain.StatusPending, rye.Status)
		assert.Nil(t, rye.FinalQuantity)

		plan := repo.st.plans[actualKey{storeID, glazedID, friday}]
		assert.Equal(t, 95, plan.PlannedQuantity)
		assert.Len(t, repo.st.plans, 1)
	}

	assert.Len(t, notifier.events, 2)
	assert.Equal(t, notify.EventForecastApproved, notifier.events[0].Type)
	assert.Len(t, objects.keys, 2)
}

func TestApproveValidation(t *testing.T) {
	svc := newForecastService(glazedRepo())
	ctx := context.Background()
	base := ApproveRequest{StoreID: storeID, TargetDate: friday, ApprovedBy: "maria"}

	cases := map[string]ApproveRequest{
		"no updates": base,
		"negative": {StoreID: storeID, TargetDate: friday, ApprovedBy: "maria",
			Updates: []domain.ApprovalUpdate{{ProductID: glazedID, FinalQuantity: -1}}},
		"no approver": {StoreID: storeID, TargetDate: friday,
			Updates: []domain.ApprovalUpdate{{ProductID: glazedID, FinalQuantity: 1}}},
		"duplicate": {StoreID: storeID, TargetDate: friday, ApprovedBy: "maria",
			Updates: []domain.ApprovalUpdate{{ProductID: glazedID, FinalQuantity: 1}, {ProductID: glazedID, FinalQuantity: 2}}},
		"no store": {TargetDate: friday, ApprovedBy: "maria",
			Updates: []domain.ApprovalUpdate{{ProductID: glazedID, FinalQuantity: 1}}},
	}

	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Approve(ctx, req)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestApproveRollsBackWhenPlanWriteFails(t *testing.T) {
	repo := glazedRepo()
	svc := newForecastService(repo)
	ctx := context.Background()

	_, err := svc.Generate(ctx, GenerateRequest{StoreID: storeID, TargetDate: friday})
	require.NoError(t, err)

	repo.failOn = "UpsertProductionPlan"
	_, err = svc.Approve(ctx, ApproveRequest{StoreID: storeID, TargetDate: friday, ApprovedBy: "maria",
		Updates: []domain.ApprovalUpdate{{ProductID: glazedID, FinalQuantity: 95}}})
	assert.ErrorIs(t, err, domain.ErrPersistence)

	rec := repo.records(storeID, friday)[0]
	assert.Equal(t, domain.StatusPending, rec.Status)
	assert.Nil(t, rec.FinalQuantity)
	assert.Empty(t, repo.st.plans)
}

func TestApproveWithoutRecordsReportsMessage(t *testing.T) {
	svc := newForecastService(newMemRepo())

	res, err := svc.Approve(context.Background(), ApproveRequest{StoreID: storeID, TargetDate: friday, ApprovedBy: "maria",
		Updates: []domain.ApprovalUpdate{{ProductID: glazedID, FinalQuantity: 95}}})
	require.NoError(t, err)
	assert.Zero(t, res.Approved)
	assert.NotEmpty(t, res.Message)
}

func TestGetCacheHitIsLabelledStored(t *testing.T) {
	repo := glazedRepo()
	c := newMemCache()
	svc := newForecastService(repo, WithForecastCache(c))
	ctx := context.Background()
	req := GenerateRequest{StoreID: storeID, TargetDate: friday}

	first, err := svc.Get(ctx, req, false)
	require.NoError(t, err)
	assert.Equal(t, SourceGenerated, first.Source)

	second, err := svc.Get(ctx, req, false)
	require.NoError(t, err)
	assert.Equal(t, 1, c.hits)
	assert.Equal(t, SourceStored, second.Source)
	assert.Equal(t, first.Products, second.Products)

	// entries written before the relabel still read back as stored
	stale := c.entries[c.key(storeID, "2026-10-16")]
	stale.Source = SourceGenerated
	c.entries[c.key(storeID, "2026-10-16")] = stale
	third, err := svc.Get(ctx, req, false)
	require.NoError(t, err)
	assert.Equal(t, SourceStored, third.Source)
}

func TestKeepApprovedPreservesSameDayApproval(t *testing.T) {
	repo := glazedRepo()
	repo.addProduct(ryeID, "Rye Loaf")
	seedFridays(repo, ryeID, 20, 22, 24)
	c := newMemCache()
	svc := newForecastService(repo, WithForecastCache(c))
	ctx := context.Background()

	_, err := svc.Generate(ctx, GenerateRequest{StoreID: storeID, TargetDate: friday})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, ApproveRequest{StoreID: storeID, TargetDate: friday, ApprovedBy: "maria",
		Updates: []domain.ApprovalUpdate{{ProductID: glazedID, FinalQuantity: 95}}})
	require.NoError(t, err)

	res, err := svc.Generate(ctx, GenerateRequest{StoreID: storeID, TargetDate: friday, KeepApproved: true})
	require.NoError(t, err)
	assert.Equal(t, []int64{glazedID}, res.KeptApproved)
	require.Len(t, res.Products, 1)
	assert.Equal(t, ryeID, res.Products[0].ProductID)
	assert.Empty(t, res.Message)
	assert.Empty(t, c.entries, "a partial result must not be cached")

	records := repo.records(storeID, friday)
	require.Len(t, records, 2)
	assert.Equal(t, domain.StatusApproved, records[0].Status)
	require.NotNil(t, records[0].FinalQuantity)
	assert.Equal(t, 95, *records[0].FinalQuantity)
	assert.Equal(t, domain.StatusPending, records[1].Status)
}

func TestKeepApprovedWithEverythingApprovedIsNotEmpty(t *testing.T) {
	repo := glazedRepo()
	svc := newForecastService(repo)
	ctx := context.Background()

	_, err := svc.Generate(ctx, GenerateRequest{StoreID: storeID, TargetDate: friday})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, ApproveRequest{StoreID: storeID, TargetDate: friday, ApprovedBy: "maria",
		Updates: []domain.ApprovalUpdate{{ProductID: glazedID, FinalQuantity: 95}}})
	require.NoError(t, err)

	res, err := svc.Generate(ctx, GenerateRequest{StoreID: storeID, TargetDate: friday, KeepApproved: true})
	require.NoError(t, err)
	assert.Empty(t, res.Products)
	assert.Equal(t, []int64{glazedID}, res.KeptApproved)
	assert.Empty(t, res.Message)
}

func TestApproveRecordsAuditEvent(t *testing.T) {
	repo := glazedRepo()
	svc := newForecastService(repo)
	ctx := context.Background()

	_, err := svc.Generate(ctx, GenerateRequest{StoreID: storeID, TargetDate: friday})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, ApproveRequest{StoreID: storeID, TargetDate: friday, ApprovedBy: "maria",
		Updates: []domain.ApprovalUpdate{{ProductID: glazedID, FinalQuantity: 95}, {ProductID: 999, FinalQuantity: 1}}})
	require.NoError(t, err)

	require.Len(t, repo.st.audits, 1)
	ev := repo.st.audits[0]
	assert.Equal(t, domain.AuditForecastApproved, ev.Action)
	assert.Equal(t, "forecast", ev.ResourceType)
	assert.Equal(t, friday, ev.ResourceDate)
	assert.Equal(t, "maria", ev.Actor)
	assert.Equal(t, 1, ev.Details["approved"])
	assert.Equal(t, []int64{glazedID}, ev.Details["product_ids"])
	assert.Equal(t, []int64{999}, ev.Details["missing"])
	assert.Equal(t, 95, ev.Details["total_quantity"])

	// nothing approved, nothing audited
	_, err = svc.Approve(ctx, ApproveRequest{StoreID: storeID, TargetDate: friday, ApprovedBy: "maria",
		Updates: []domain.ApprovalUpdate{{ProductID: 999, FinalQuantity: 1}}})
	require.NoError(t, err)
	assert.Len(t, repo.st.audits, 1)
}

func TestApproveRollsBackWhenAuditFails(t *testing.T) {
	repo := glazedRepo()
	svc := newForecastService(repo)
	ctx := context.Background()

	_, err := svc.Generate(ctx, GenerateRequest{StoreID: storeID, TargetDate: friday})
	require.NoError(t, err)

	repo.failOn = "InsertAuditEvent"
	_, err = svc.Approve(ctx, ApproveRequest{StoreID: storeID, TargetDate: friday, ApprovedBy: "maria",
		Updates: []domain.ApprovalUpdate{{ProductID: glazedID, FinalQuantity: 95}}})
	assert.ErrorIs(t, err, domain.ErrPersistence)

	assert.Equal(t, domain.StatusPending, repo.records(storeID, friday)[0].Status)
	assert.Empty(t, repo.st.plans)
	assert.Empty(t, repo.st.audits)
}

func TestArchivedPlansListsApprovals(t *testing.T) {
	repo := glazedRepo()
	objects := &memObjects{}
	svc := newForecastService(repo, WithPlanArchiver(storage.NewPlanArchiver(objects)))
	ctx := context.Background()

	_, err := svc.Generate(ctx, GenerateRequest{StoreID: storeID, TargetDate: friday})
	require.NoError(t, err)
	res, err := svc.Approve(ctx, ApproveRequest{StoreID: storeID, TargetDate: friday, ApprovedBy: "maria",
		Updates: []domain.ApprovalUpdate{{ProductID: glazedID, FinalQuantity: 95}}})
	require.NoError(t, err)
	require.NotEmpty(t, res.ArchiveKey)

	archived, err := svc.ArchivedPlans(ctx, storeID, friday)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, res.ArchiveKey, archived[0].Key)

	other, err := svc.ArchivedPlans(ctx, storeID, friday.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Empty(t, other)

	_, err = svc.ArchivedPlans(ctx, 0, friday)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestArchivedPlansWithoutArchiverIsEmpty(t *testing.T) {
	svc := newForecastService(glazedRepo())

	archived, err := svc.ArchivedPlans(context.Background(), storeID, friday)
	require.NoError(t, err)
	assert.NotNil(t, archived)
	assert.Empty(t, archived)
}

func TestApproveDoesNotWaitForWebhook(t *testing.T) {
	repo := glazedRepo()
	notifier, hits := hangingWebhook(t)
	svc := newForecastService(repo, WithNotifier(notifier))
	ctx := context.Background()

	_, err := svc.Generate(ctx, GenerateRequest{StoreID: storeID, TargetDate: friday})
	require.NoError(t, err)

	start := time.Now()
	res, err := svc.Approve(ctx, ApproveRequest{StoreID: storeID, TargetDate: friday, ApprovedBy: "maria",
		Updates: []domain.ApprovalUpdate{{ProductID: glazedID, FinalQuantity: 95}}})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, res.Approved)

	// the event still reaches the endpoint in the background
	assert.Eventually(t, func() bool { return hits.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}
