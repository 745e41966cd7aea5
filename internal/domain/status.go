package domain

import "strings"

// ForecastStatus is the approval state of a forecast record.
type ForecastStatus string

const (
	StatusPending  ForecastStatus = "pending"
	StatusApproved ForecastStatus = "approved"
)

// ParseForecastStatus returns the status for a given label (case-insensitive).
func ParseForecastStatus(label string) (ForecastStatus, bool) {
	switch ForecastStatus(strings.ToLower(strings.TrimSpace(label))) {
	case StatusPending:
		return StatusPending, true
	case StatusApproved:
		return StatusApproved, true
	}
	return "", false
}

// Expectation is the manager's qualitative outlook for a target date.
type Expectation string

const (
	ExpectationBusy   Expectation = "busy"
	ExpectationNormal Expectation = "normal"
	ExpectationSlow   Expectation = "slow"
	ExpectationUnsure Expectation = "unsure"
)

var expectationMultipliers = map[Expectation]float64{
	ExpectationBusy:   1.15,
	ExpectationNormal: 1.00,
	ExpectationSlow:   0.85,
	ExpectationUnsure: 1.00,
}

// ParseExpectation normalizes a label; unknown or empty labels fall back to normal.
func ParseExpectation(label string) Expectation {
	e := Expectation(strings.ToLower(strings.TrimSpace(label)))
	if _, ok := expectationMultipliers[e]; ok {
		return e
	}
	return ExpectationNormal
}

// IsKnownExpectation reports whether label names one of the four expectations.
func IsKnownExpectation(label string) bool {
	_, ok := expectationMultipliers[Expectation(strings.ToLower(strings.TrimSpace(label)))]
	return ok
}

// Multiplier returns the demand multiplier for the expectation.
func (e Expectation) Multiplier() float64 {
	if m, ok := expectationMultipliers[e]; ok {
		return m
	}
	return 1.00
}

// Confidence reflects how many same-weekday samples back a prediction.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// WasteStatus is the review state of a waste submission.
type WasteStatus string

const (
	WastePending  WasteStatus = "pending"
	WasteApproved WasteStatus = "approved"
)

// AuditAction names a state change recorded in the audit trail.
type AuditAction string

const (
	AuditForecastApproved AuditAction = "forecast_approved"
	AuditWasteSubmitted   AuditAction = "waste_submitted"
	AuditWasteApproved    AuditAction = "waste_approved"
)
