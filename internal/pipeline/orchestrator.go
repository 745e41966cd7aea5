package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/andresuchdata/bakecast/internal/domain"
	"github.com/andresuchdata/bakecast/internal/notify"
	"github.com/andresuchdata/bakecast/internal/service"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type StoreSource interface {
	ListStores(ctx context.Context, storeIDs []int64) ([]domain.Store, error)
}

type AccuracyStep interface {
	ComputeAccuracy(ctx context.Context, storeID int64, targetDate time.Time) (*service.AccuracyResult, error)
}

type LearningStep interface {
	UpdateLearning(ctx context.Context, storeID int64, lookbackDays int) (*service.LearningResult, error)
}

type ForecastStep interface {
	Generate(ctx context.Context, req service.GenerateRequest) (*domain.ForecastResult, error)
	ApplyContext(ctx context.Context, storeID int64, targetDate time.Time) (*service.ApplyContextResult, error)
}

// RunRecorder persists run bookkeeping; *Repository implements it.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *Run) error
	UpdateRun(ctx context.Context, run *Run) error
}

// Orchestrator runs the nightly feedback loop for every active store:
// accuracy for yesterday, then learning, then tomorrow's forecast with the
// saved manager context applied. Stores run in parallel and fail independently.
type Orchestrator struct {
	stores   StoreSource
	accuracy AccuracyStep
	learning LearningStep
	forecast ForecastStep
	runs     RunRecorder
	notifier notify.Notifier
	cfg      Config
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates a new Orchestrator. runs and notifier may be nil.
func NewOrchestrator(stores StoreSource, accuracy AccuracyStep, learning LearningStep, forecast ForecastStep, runs RunRecorder, notifier notify.Notifier, cfg Config) *Orchestrator {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	return &Orchestrator{
		stores:   stores,
		accuracy: accuracy,
		learning: learning,
		forecast: forecast,
		runs:     runs,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run processes the given stores, or every active store when storeIDs is empty.
func (o *Orchestrator) Run(ctx context.Context, storeIDs []int64) (*Summary, error) {
	stores, err := o.stores.ListStores(ctx, storeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}

	runDate := domain.Day(o.now())
	summary := &Summary{
		RunID:      uuid.NewString(),
		RunDate:    domain.FormatDate(runDate),
		TargetDate: domain.FormatDate(runDate.AddDate(0, 0, 1)),
		Stores:     make([]StoreOutcome, len(stores)),
	}

	logger := log.With().Str("pipeline", o.cfg.Name).Str("run_id", summary.RunID).Logger()
	logger.Info().Int("stores", len(stores)).Int("workers", o.cfg.WorkerCount).Msg("starting nightly run")

	var (
		mu   sync.Mutex
		errs []error
	)

	var g errgroup.Group
	g.SetLimit(o.cfg.WorkerCount)

	for i, store := range stores {
		g.Go(func() error {
			outcome := o.runStore(ctx, summary.RunID, runDate, store.ID)
			summary.Stores[i] = outcome
			if outcome.Status == StatusFailed {
				mu.Lock()
				errs = append(errs, fmt.Errorf("store %d: %s", store.ID, outcome.Error))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	summary.Failed = len(errs)
	logger.Info().Int("failed", summary.Failed).Msg("nightly run finished")

	if len(errs) > 0 {
		return summary, errors.Join(errs...)
	}
	return summary, nil
}

func (o *Orchestrator) runStore(ctx context.Context, runID string, runDate time.Time, storeID int64) StoreOutcome {
	outcome := StoreOutcome{StoreID: storeID, Status: StatusProcessing}
	run := &Run{
		RunID:        runID,
		PipelineName: o.cfg.Name,
		StoreID:      storeID,
		Date:         runDate,
		Status:       StatusProcessing,
		StartedAt:    o.now().UTC(),
	}
	o.record(ctx, run, true)

	var lastErr error
	for attempt := 1; attempt <= o.cfg.RetryAttempts; attempt++ {
		outcome.Attempts = attempt
		lastErr = o.processStore(ctx, runDate, storeID, &outcome)
		if lastErr == nil {
			break
		}

		log.Warn().Err(lastErr).
			Str("run_id", runID).
			Int64("store_id", storeID).
			Int("attempt", attempt).
			Msg("store pipeline attempt failed")

		// bad input will not get better on retry
		if errors.Is(lastErr, domain.ErrInvalidInput) || attempt == o.cfg.RetryAttempts {
			break
		}
		if err := o.sleep(ctx, o.cfg.RetryBackoff*time.Duration(attempt)); err != nil {
			lastErr = err
			break
		}
	}

	completed := o.now().UTC()
	run.CompletedAt = &completed
	run.Attempts = outcome.Attempts

	if lastErr != nil {
		outcome.Status = StatusFailed
		outcome.Error = lastErr.Error()
		run.Status = StatusFailed
		run.ErrorMessage = lastErr.Error()
		o.record(ctx, run, false)

		event := notify.Event{
			Type:       notify.EventPipelineFailed,
			StoreID:    storeID,
			TargetDate: domain.FormatDate(runDate.AddDate(0, 0, 1)),
			OccurredAt: completed,
			Message:    fmt.Sprintf("nightly forecast failed for store %d after %d attempts", storeID, outcome.Attempts),
			Metadata:   map[string]any{"run_id": runID, "error": lastErr.Error()},
		}
		if err := o.notifier.Notify(ctx, event); err != nil {
			log.Error().Err(err).Int64("store_id", storeID).Msg("failed to send pipeline failure notification")
		}
		return outcome
	}

	outcome.Status = StatusCompleted
	run.Status = StatusCompleted
	o.record(ctx, run, false)
	return outcome
}

// processStore runs the three steps. Each step commits on its own, so a retry
// recomputes idempotently from the start.
func (o *Orchestrator) processStore(ctx context.Context, runDate time.Time, storeID int64, outcome *StoreOutcome) error {
	yesterday := runDate.AddDate(0, 0, -1)
	tomorrow := runDate.AddDate(0, 0, 1)

	acc, err := o.accuracy.ComputeAccuracy(ctx, storeID, yesterday)
	if err != nil {
		return fmt.Errorf("accuracy: %w", err)
	}
	outcome.AccuracyRecords = len(acc.Records)

	learn, err := o.learning.UpdateLearning(ctx, storeID, o.cfg.LookbackDays)
	if err != nil {
		return fmt.Errorf("learning: %w", err)
	}
	outcome.LearningUpdated = learn.Updated

	// same-day approvals for tomorrow survive the nightly regeneration
	gen, err := o.forecast.Generate(ctx, service.GenerateRequest{StoreID: storeID, TargetDate: tomorrow, KeepApproved: true})
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	outcome.ForecastsProduced = len(gen.Products)
	outcome.ForecastsKept = len(gen.KeptApproved)

	if len(gen.Products) > 0 {
		if _, err := o.forecast.ApplyContext(ctx, storeID, tomorrow); err != nil {
			return fmt.Errorf("apply context: %w", err)
		}
	}
	return nil
}

func (o *Orchestrator) record(ctx context.Context, run *Run, create bool) {
	if o.runs == nil {
		return
	}
	var err error
	if create {
		err = o.runs.CreateRun(ctx, run)
	} else {
		err = o.runs.UpdateRun(ctx, run)
	}
	if err != nil {
		log.Error().Err(err).Int64("store_id", run.StoreID).Msg("failed to record pipeline run")
	}
}
