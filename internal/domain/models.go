// internal/domain/models.go
package domain

import "time"

// Store represents a store location
type Store struct {
	ID       int64  `json:"store_id" db:"store_id"`
	Name     string `json:"store_name" db:"store_name"`
	IsActive bool   `json:"is_active" db:"is_active"`
}

// Product is a sellable item. StoreID is nil for products carried by every store.
type Product struct {
	ID        int64     `json:"product_id" db:"product_id"`
	Name      string    `json:"product_name" db:"product_name"`
	Category  string    `json:"category" db:"category"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	StoreID   *int64    `json:"store_id,omitempty" db:"store_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DailyActual is the realized production and waste of one product on one day.
type DailyActual struct {
	StoreID   int64     `json:"store_id" db:"store_id"`
	ProductID int64     `json:"product_id" db:"product_id"`
	Date      time.Time `json:"date" db:"date"`
	Produced  int       `json:"produced" db:"produced"`
	Waste     int       `json:"waste" db:"waste"`
	Source    string    `json:"source,omitempty" db:"source"`
}

// Sold returns produced minus waste, floored at zero.
func (a DailyActual) Sold() int {
	if sold := a.Produced - a.Waste; sold > 0 {
		return sold
	}
	return 0
}

// ForecastRecord is a persisted forecast for one product, store and target date.
type ForecastRecord struct {
	StoreID                 int64          `json:"store_id" db:"store_id"`
	ProductID               int64          `json:"product_id" db:"product_id"`
	ProductName             string         `json:"product_name,omitempty" db:"product_name"`
	ForecastDate            time.Time      `json:"forecast_date" db:"forecast_date"`
	TargetDate              time.Time      `json:"target_date" db:"target_date"`
	PredictedQuantity       int            `json:"predicted_quantity" db:"predicted_quantity"`
	ContextExpectation      Expectation    `json:"context_expectation" db:"context_expectation"`
	ContextMultiplier       float64        `json:"context_multiplier" db:"context_multiplier"`
	AdjustedQuantity        int            `json:"adjusted_quantity" db:"adjusted_quantity"`
	ManagerOverrideQuantity *int           `json:"manager_override_quantity" db:"manager_override_quantity"`
	FinalQuantity           *int           `json:"final_quantity" db:"final_quantity"`
	Status                  ForecastStatus `json:"status" db:"status"`
	Confidence              Confidence     `json:"confidence" db:"confidence"`
	AvgSold                 float64        `json:"avg_sold" db:"avg_sold"`
	LearningAdjustment      int            `json:"learning_adjustment" db:"learning_adjustment"`
	AdjustmentReason        *string        `json:"adjustment_reason" db:"adjustment_reason"`
	ModelVersion            string         `json:"model_version" db:"model_version"`
	ApprovedBy              *string        `json:"approved_by" db:"approved_by"`
	ApprovedAt              *time.Time     `json:"approved_at" db:"approved_at"`
	ActualSold              *int           `json:"actual_sold" db:"actual_sold"`
	ForecastError           *int           `json:"forecast_error" db:"forecast_error"`
	ErrorPct                *float64       `json:"error_pct" db:"error_pct"`
	CreatedAt               time.Time      `json:"created_at" db:"created_at"`
}

// ForecastEntry is the generator's output for one product.
type ForecastEntry struct {
	ProductID          int64       `json:"product_id"`
	ProductName        string      `json:"product_name"`
	PredictedQuantity  int         `json:"predicted_quantity"`
	AdjustedQuantity   int         `json:"adjusted_quantity"`
	AvgSold            float64     `json:"avg_sold"`
	SampleSize         int         `json:"sample_size,omitempty"`
	Confidence         Confidence  `json:"confidence"`
	Expectation        Expectation `json:"expectation"`
	MultiplierUsed     float64     `json:"multiplier_used"`
	LearningAdjustment int         `json:"learning_adjustment"`
	AdjustmentReason   *string     `json:"adjustment_reason"`
}

// ForecastContext is the manager's outlook for a store on a target date.
type ForecastContext struct {
	StoreID     int64       `json:"store_id" db:"store_id"`
	TargetDate  time.Time   `json:"target_date" db:"target_date"`
	Expectation Expectation `json:"expectation" db:"expectation"`
	Reason      *string     `json:"reason" db:"reason"`
	Notes       *string     `json:"notes" db:"notes"`
}

// LearningState is the rolling bias estimate for one store and product.
type LearningState struct {
	StoreID     int64     `json:"store_id" db:"store_id"`
	ProductID   int64     `json:"product_id" db:"product_id"`
	ProductName string    `json:"product_name,omitempty" db:"product_name"`
	AvgError    float64   `json:"avg_error" db:"avg_error"`
	AvgErrorPct float64   `json:"avg_error_pct" db:"avg_error_pct"`
	SampleSize  int       `json:"sample_size" db:"sample_size"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}

// LearningSample is one approved forecast with a known outcome.
type LearningSample struct {
	ProductID     int64     `db:"product_id"`
	TargetDate    time.Time `db:"target_date"`
	ForecastError int       `db:"forecast_error"`
	ErrorPct      float64   `db:"error_pct"`
}

// ApprovalUpdate is a manager's final quantity for one product.
type ApprovalUpdate struct {
	ProductID     int64 `json:"product_id"`
	FinalQuantity int   `json:"final_quantity"`
}

// ProductionPlan is the approved quantity a store plans to produce.
type ProductionPlan struct {
	StoreID         int64     `json:"store_id" db:"store_id"`
	ProductID       int64     `json:"product_id" db:"product_id"`
	ProductionDate  time.Time `json:"production_date" db:"production_date"`
	PlannedQuantity int       `json:"planned_quantity" db:"planned_quantity"`
	CreatedBy       string    `json:"created_by" db:"created_by"`
}

// PlanActual pairs a planned quantity with the realized production and waste.
type PlanActual struct {
	ProductID       int64 `db:"product_id"`
	PlannedQuantity int   `db:"planned_quantity"`
	Produced        int   `db:"produced"`
	Waste           int   `db:"waste"`
}

// AccuracyRecord is one row of the accuracy ledger.
type AccuracyRecord struct {
	StoreID         int64     `json:"store_id" db:"store_id"`
	ProductID       int64     `json:"product_id" db:"product_id"`
	TargetDate      time.Time `json:"target_date" db:"target_date"`
	PlannedQuantity int       `json:"planned_quantity" db:"planned_quantity"`
	ActualProduced  int       `json:"actual_produced" db:"actual_produced"`
	ActualSold      int       `json:"actual_sold" db:"actual_sold"`
	ActualWaste     int       `json:"actual_waste" db:"actual_waste"`
	ErrorQuantity   int       `json:"error_quantity" db:"error_quantity"`
	ErrorPercent    float64   `json:"error_percent" db:"error_percent"`
	ComputedAt      time.Time `json:"computed_at" db:"created_at"`
}

// AccuracySummary aggregates forecast error metrics for a store.
type AccuracySummary struct {
	StoreID     int64           `json:"store_id"`
	MAE         float64         `json:"mae"`
	MAPE        float64         `json:"mape"`
	Bias        float64         `json:"bias"`
	SampleSize  int             `json:"sample_size"`
	LastUpdated *string         `json:"last_updated"`
	Trend       []AccuracyPoint `json:"trend"`
}

// AccuracyPoint is the mean error percentage for one target date.
type AccuracyPoint struct {
	TargetDate  time.Time `json:"target_date" db:"target_date"`
	AvgErrorPct float64   `json:"avg_error_pct" db:"avg_error_pct"`
}

// HistoryPoint summarizes all forecasts for one target date.
type HistoryPoint struct {
	TargetDate     time.Time `json:"target_date" db:"target_date"`
	TotalPredicted int       `json:"total_predicted" db:"total_predicted"`
	TotalFinal     *int      `json:"total_final" db:"total_final"`
	AvgErrorPct    *float64  `json:"avg_error" db:"avg_error"`
}

// WasteSubmission is a staff-reported waste quantity awaiting manager review.
type WasteSubmission struct {
	ID            int64       `json:"submission_id" db:"submission_id"`
	StoreID       int64       `json:"store_id" db:"store_id"`
	ProductID     int64       `json:"product_id" db:"product_id"`
	ProductName   string      `json:"product_name,omitempty" db:"product_name"`
	WasteDate     time.Time   `json:"waste_date" db:"waste_date"`
	WasteQuantity int         `json:"waste_quantity" db:"waste_quantity"`
	SubmittedBy   string      `json:"submitted_by" db:"submitted_by"`
	Status        WasteStatus `json:"status" db:"status"`
	ApprovedBy    *string     `json:"approved_by" db:"approved_by"`
	ApprovedAt    *time.Time  `json:"approved_at" db:"approved_at"`
}

// WasteEntry is one product line of a waste submission.
type WasteEntry struct {
	ProductID     int64 `json:"product_id"`
	WasteQuantity int   `json:"waste_quantity"`
}

// ForecastResult is the generate-or-fetch payload for one store and target date.
type ForecastResult struct {
	StoreID     int64           `json:"store_id"`
	TargetDate  string          `json:"target_date"`
	Source      string          `json:"source"`
	Expectation Expectation     `json:"expectation"`
	Multiplier  float64         `json:"multiplier"`
	Products    []ForecastEntry `json:"products"`
	// KeptApproved lists products whose approval was preserved instead of regenerated.
	KeptApproved []int64 `json:"kept_approved,omitempty"`
	Message      string  `json:"message,omitempty"`
}

// AuditEvent is one entry of the append-only audit trail. Details holds the
// action-specific payload as a JSON object.
type AuditEvent struct {
	ID           int64          `json:"id" db:"id"`
	StoreID      int64          `json:"store_id" db:"store_id"`
	Action       AuditAction    `json:"action" db:"action"`
	ResourceType string         `json:"resource_type" db:"resource_type"`
	ResourceDate time.Time      `json:"resource_date" db:"resource_date"`
	Actor        string         `json:"actor" db:"actor"`
	Details      map[string]any `json:"details" db:"-"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}
