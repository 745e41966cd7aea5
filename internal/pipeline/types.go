package pipeline

import (
	"time"

	"github.com/andresuchdata/bakecast/internal/config"
)

const NightlyPipeline = "nightly-forecast"

// Config holds the knobs of the nightly run.
type Config struct {
	Name          string
	WorkerCount   int           // stores processed concurrently
	RetryAttempts int           // attempts per store before giving up
	RetryBackoff  time.Duration // wait between attempts, multiplied by the attempt number
	LookbackDays  int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Name:          NightlyPipeline,
		WorkerCount:   4,
		RetryAttempts: 3,
		RetryBackoff:  30 * time.Second,
		LookbackDays:  7,
	}
}

// ConfigFrom maps the application config onto the runner config.
func ConfigFrom(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg.Pipeline.WorkerCount > 0 {
		c.WorkerCount = cfg.Pipeline.WorkerCount
	}
	if cfg.Pipeline.RetryAttempts > 0 {
		c.RetryAttempts = cfg.Pipeline.RetryAttempts
	}
	if backoff := cfg.Pipeline.RetryBackoff(); backoff > 0 {
		c.RetryBackoff = backoff
	}
	if cfg.Forecast.LookbackDays > 0 {
		c.LookbackDays = cfg.Forecast.LookbackDays
	}
	return c
}

// Status represents the current state of a pipeline run
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Run tracks one store's pass through the nightly pipeline.
type Run struct {
	ID           int64      `db:"id" json:"id"`
	RunID        string     `db:"run_id" json:"run_id"`
	PipelineName string     `db:"pipeline_name" json:"pipeline_name"`
	StoreID      int64      `db:"store_id" json:"store_id"`
	Date         time.Time  `db:"date" json:"date"`
	Status       Status     `db:"status" json:"status"`
	Attempts     int        `db:"attempts" json:"attempts"`
	StartedAt    time.Time  `db:"started_at" json:"started_at"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at"`
	ErrorMessage string     `db:"error_message" json:"error_message"`
}

// StoreOutcome summarizes what the pipeline did for one store.
type StoreOutcome struct {
	StoreID           int64  `json:"store_id"`
	Status            Status `json:"status"`
	Attempts          int    `json:"attempts"`
	AccuracyRecords   int    `json:"accuracy_records"`
	LearningUpdated   int    `json:"learning_updated"`
	ForecastsProduced int    `json:"forecasts_produced"`
	ForecastsKept     int    `json:"forecasts_kept"`
	Error             string `json:"error,omitempty"`
}

// Summary is the result of a nightly run across stores.
type Summary struct {
	RunID      string         `json:"run_id"`
	RunDate    string         `json:"run_date"`
	TargetDate string         `json:"target_date"`
	Stores     []StoreOutcome `json:"stores"`
	Failed     int            `json:"failed"`
}
