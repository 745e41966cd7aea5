package forecast

import (
	"math"
	"sort"
	"time"

	"github.com/andresuchdata/bakecast/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	DefaultSampleLimit      = 9
	DefaultSafetyBuffer     = 0.05
	DefaultMaxAdjustmentPct = 0.15

	highConfidenceSamples   = 6
	mediumConfidenceSamples = 4

	BiasCorrectionReason = "recent bias correction"
)

// Policy holds the numeric knobs of the forecast model.
type Policy struct {
	SampleLimit      int
	SafetyBuffer     float64
	MaxAdjustmentPct float64
}

// DefaultPolicy returns the production policy: 9 samples, 5% buffer, ±15% learning cap.
func DefaultPolicy() Policy {
	return Policy{
		SampleLimit:      DefaultSampleLimit,
		SafetyBuffer:     DefaultSafetyBuffer,
		MaxAdjustmentPct: DefaultMaxAdjustmentPct,
	}
}

func (p Policy) normalized() Policy {
	if p.SampleLimit <= 0 {
		p.SampleLimit = DefaultSampleLimit
	}
	if p.SafetyBuffer < 0 {
		p.SafetyBuffer = DefaultSafetyBuffer
	}
	if p.MaxAdjustmentPct <= 0 {
		p.MaxAdjustmentPct = DefaultMaxAdjustmentPct
	}
	return p
}

// Prediction is the model output for one product before it is persisted.
type Prediction struct {
	AvgSold            float64
	SampleSize         int
	Confidence         domain.Confidence
	Multiplier         float64
	Buffered           int
	LearningAdjustment int
	Quantity           int
}

// Calculator turns same-weekday history into a production recommendation.
type Calculator struct {
	policy Policy
}

// NewCalculator creates a calculator; zero-valued policy fields take the defaults.
func NewCalculator(policy Policy) *Calculator {
	return &Calculator{policy: policy.normalized()}
}

// Policy returns the effective policy.
func (c *Calculator) Policy() Policy {
	return c.policy
}

// Predict computes the recommendation for one product. It returns false when
// there are no samples; such products get no forecast at all.
func (c *Calculator) Predict(samples []domain.DailyActual, expectation domain.Expectation, bias float64) (Prediction, bool) {
	if len(samples) > c.policy.SampleLimit {
		samples = samples[:c.policy.SampleLimit]
	}
	if len(samples) == 0 {
		return Prediction{}, false
	}

	// 1. Base prediction = mean sold over the same-weekday samples
	total := 0
	for _, s := range samples {
		total += s.Sold()
	}
	avgSold := float64(total) / float64(len(samples))

	// 2. Context multiplier, then safety buffer
	multiplier := expectation.Multiplier()
	buffered := RoundQuantity(avgSold * multiplier * (1 + c.policy.SafetyBuffer))

	// 3. Learning correction on top of the buffered value
	quantity, adj := ApplyBias(buffered, ClampBias(bias, c.policy.MaxAdjustmentPct))

	return Prediction{
		AvgSold:            RoundOneDecimal(avgSold),
		SampleSize:         len(samples),
		Confidence:         ConfidenceFor(len(samples)),
		Multiplier:         multiplier,
		Buffered:           buffered,
		LearningAdjustment: adj,
		Quantity:           quantity,
	}, true
}

// Weekday numbers days 0=Monday..6=Sunday, matching EXTRACT(ISODOW) - 1 in SQL.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// ConfidenceFor tiers a sample count: >=6 high, >=4 medium, else low.
func ConfidenceFor(samples int) domain.Confidence {
	switch {
	case samples >= highConfidenceSamples:
		return domain.ConfidenceHigh
	case samples >= mediumConfidenceSamples:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// ApplyBias adds round(base × bias) to base, never going below zero.
func ApplyBias(base int, bias float64) (int, int) {
	adj := RoundQuantity(float64(base) * bias)
	return max(0, base+adj), adj
}

// ClampBias bounds a bias fraction to ±limit.
func ClampBias(bias, limit float64) float64 {
	if limit <= 0 {
		limit = DefaultMaxAdjustmentPct
	}
	return math.Max(-limit, math.Min(limit, bias))
}

// AdjustedQuantity applies a context multiplier to a stored prediction.
func AdjustedQuantity(predicted int, multiplier float64) int {
	return RoundQuantity(float64(predicted) * multiplier)
}

// ErrorPercent returns errQty / base × 100, or 0 when base is not positive.
func ErrorPercent(errQty, base int) float64 {
	if base <= 0 {
		return 0
	}
	return float64(errQty) / float64(base) * 100
}

// Accuracy compares a planned quantity with realized production and waste.
// Sold is floored at zero.
func Accuracy(planned, produced, waste int) (sold, errQty int, errPct float64) {
	sold = max(0, produced-waste)
	errQty = sold - planned
	return sold, errQty, ErrorPercent(errQty, planned)
}

// AggregateLearning folds approved-forecast outcomes into one learning state per
// product. Error percentages arrive in percent units and leave as a clamped fraction.
func AggregateLearning(storeID int64, samples []domain.LearningSample, limit float64, now time.Time) []domain.LearningState {
	type acc struct {
		errSum float64
		pctSum float64
		n      int
	}
	byProduct := make(map[int64]*acc)
	for _, s := range samples {
		a, ok := byProduct[s.ProductID]
		if !ok {
			a = &acc{}
			byProduct[s.ProductID] = a
		}
		a.errSum += float64(s.ForecastError)
		a.pctSum += s.ErrorPct
		a.n++
	}

	states := make([]domain.LearningState, 0, len(byProduct))
	for productID, a := range byProduct {
		n := float64(a.n)
		states = append(states, domain.LearningState{
			StoreID:     storeID,
			ProductID:   productID,
			AvgError:    a.errSum / n,
			AvgErrorPct: ClampBias(a.pctSum/n/100, limit),
			SampleSize:  a.n,
			LastUpdated: now,
		})
	}
	sort.Slice(states, func(i, j int) bool { return states[i].ProductID < states[j].ProductID })
	return states
}

// RoundQuantity rounds half to even, the rounding the forecast model has always used.
func RoundQuantity(v float64) int {
	return int(math.RoundToEven(v))
}

// RoundOneDecimal rounds v to one decimal place with banker's rounding.
func RoundOneDecimal(v float64) float64 {
	return decimal.NewFromFloat(v).RoundBank(1).InexactFloat64()
}
