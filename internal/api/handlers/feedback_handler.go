package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/andresuchdata/bakecast/internal/domain"
	"github.com/andresuchdata/bakecast/internal/service"
	"github.com/gin-gonic/gin"
)

type LearningService interface {
	UpdateLearning(ctx context.Context, storeID int64, lookbackDays int) (*service.LearningResult, error)
	ListStates(ctx context.Context, storeID int64) ([]domain.LearningState, error)
}

type AccuracyService interface {
	ComputeAccuracy(ctx context.Context, storeID int64, targetDate time.Time) (*service.AccuracyResult, error)
	Summary(ctx context.Context, storeID int64, days int) (*domain.AccuracySummary, error)
}

// FeedbackHandler serves the learning and accuracy endpoints.
type FeedbackHandler struct {
	learning LearningService
	accuracy AccuracyService
}

func NewFeedbackHandler(learning LearningService, accuracy AccuracyService) *FeedbackHandler {
	return &FeedbackHandler{learning: learning, accuracy: accuracy}
}

type learningRequest struct {
	StoreID      int64 `json:"store_id"`
	LookbackDays int   `json:"lookback_days"`
}

func (h *FeedbackHandler) UpdateLearning(c *gin.Context) {
	var req learningRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.learning.UpdateLearning(c.Request.Context(), req.StoreID, req.LookbackDays)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *FeedbackHandler) GetLearning(c *gin.Context) {
	storeID, ok := queryStoreID(c)
	if !ok {
		return
	}

	states, err := h.learning.ListStates(c.Request.Context(), storeID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"store_id": storeID, "states": states})
}

func (h *FeedbackHandler) ComputeAccuracy(c *gin.Context) {
	var req storeDateRequest
	if !bindJSON(c, &req) {
		return
	}
	targetDate, ok := bodyDate(c, "target_date", req.TargetDate)
	if !ok {
		return
	}

	result, err := h.accuracy.ComputeAccuracy(c.Request.Context(), req.StoreID, targetDate)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *FeedbackHandler) GetAccuracy(c *gin.Context) {
	storeID, ok := queryStoreID(c)
	if !ok {
		return
	}
	days := parsePositiveIntWithDefault(c.Query("days"), 30)

	summary, err := h.accuracy.Summary(c.Request.Context(), storeID, days)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
