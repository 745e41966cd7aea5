package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/bakecast/internal/domain"
	"github.com/andresuchdata/bakecast/internal/service"
	"github.com/andresuchdata/bakecast/internal/storage"
	"github.com/gin-gonic/gin"
)

// ForecastService is the part of *service.ForecastService the handler needs.
type ForecastService interface {
	Get(ctx context.Context, req service.GenerateRequest, regenerate bool) (*domain.ForecastResult, error)
	ListForecasts(ctx context.Context, storeID int64, targetDate time.Time, status domain.ForecastStatus) ([]domain.ForecastRecord, error)
	ListByStatus(ctx context.Context, storeID int64, status domain.ForecastStatus) ([]domain.ForecastRecord, error)
	Approve(ctx context.Context, req service.ApproveRequest) (*service.ApprovalResult, error)
	SaveContext(ctx context.Context, req service.ContextRequest) (*domain.ForecastContext, error)
	ApplyContext(ctx context.Context, storeID int64, targetDate time.Time) (*service.ApplyContextResult, error)
	History(ctx context.Context, storeID int64, limit int) ([]domain.HistoryPoint, error)
	ArchivedPlans(ctx context.Context, storeID int64, targetDate time.Time) ([]storage.ObjectInfo, error)
}

type ForecastHandler struct {
	service ForecastService
}

func NewForecastHandler(service ForecastService) *ForecastHandler {
	return &ForecastHandler{service: service}
}

// GetForecast returns the stored forecast for the date, generating it first
// when none exists or regenerate=true.
func (h *ForecastHandler) GetForecast(c *gin.Context) {
	storeID, ok := queryStoreID(c)
	if !ok {
		return
	}
	targetDate, ok := queryDate(c, "target_date")
	if !ok {
		return
	}

	result, err := h.service.Get(c.Request.Context(), service.GenerateRequest{
		StoreID:     storeID,
		TargetDate:  targetDate,
		Expectation: c.Query("expectation"),
	}, parseBool(c.Query("regenerate")))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPending lists pending records for the date, one per product.
func (h *ForecastHandler) GetPending(c *gin.Context) {
	storeID, ok := queryStoreID(c)
	if !ok {
		return
	}
	targetDate, ok := queryDate(c, "target_date")
	if !ok {
		return
	}

	records, err := h.service.ListForecasts(c.Request.Context(), storeID, targetDate, domain.StatusPending)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"store_id":    storeID,
		"target_date": domain.FormatDate(targetDate),
		"forecasts":   records,
	})
}

// GetApprovals lists the store's records by status across dates; pending by default.
func (h *ForecastHandler) GetApprovals(c *gin.Context) {
	storeID, ok := queryStoreID(c)
	if !ok {
		return
	}

	status := domain.StatusPending
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		parsed, valid := domain.ParseForecastStatus(raw)
		if !valid {
			badRequest(c, "status must be pending or approved")
			return
		}
		status = parsed
	}

	records, err := h.service.ListByStatus(c.Request.Context(), storeID, status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"store_id": storeID, "status": status, "forecasts": records})
}

type approveRequest struct {
	StoreID    int64                   `json:"store_id"`
	TargetDate string                  `json:"target_date"`
	ApprovedBy string                  `json:"approved_by"`
	Updates    []domain.ApprovalUpdate `json:"updates"`
}

func (h *ForecastHandler) Approve(c *gin.Context) {
	var req approveRequest
	if !bindJSON(c, &req) {
		return
	}
	targetDate, ok := bodyDate(c, "target_date", req.TargetDate)
	if !ok {
		return
	}

	result, err := h.service.Approve(c.Request.Context(), service.ApproveRequest{
		StoreID:    req.StoreID,
		TargetDate: targetDate,
		ApprovedBy: req.ApprovedBy,
		Updates:    req.Updates,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type contextRequest struct {
	StoreID     int64   `json:"store_id"`
	TargetDate  string  `json:"target_date"`
	Expectation string  `json:"expectation"`
	Reason      *string `json:"reason"`
	Notes       *string `json:"notes"`
}

func (h *ForecastHandler) SaveContext(c *gin.Context) {
	var req contextRequest
	if !bindJSON(c, &req) {
		return
	}
	targetDate, ok := bodyDate(c, "target_date", req.TargetDate)
	if !ok {
		return
	}

	saved, err := h.service.SaveContext(c.Request.Context(), service.ContextRequest{
		StoreID:     req.StoreID,
		TargetDate:  targetDate,
		Expectation: req.Expectation,
		Reason:      req.Reason,
		Notes:       req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, saved)
}

type storeDateRequest struct {
	StoreID    int64  `json:"store_id"`
	TargetDate string `json:"target_date"`
}

func (h *ForecastHandler) ApplyContext(c *gin.Context) {
	var req storeDateRequest
	if !bindJSON(c, &req) {
		return
	}
	targetDate, ok := bodyDate(c, "target_date", req.TargetDate)
	if !ok {
		return
	}

	result, err := h.service.ApplyContext(c.Request.Context(), req.StoreID, targetDate)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *ForecastHandler) GetHistory(c *gin.Context) {
	storeID, ok := queryStoreID(c)
	if !ok {
		return
	}
	limit := parsePositiveIntWithDefault(c.Query("limit"), 30)

	points, err := h.service.History(c.Request.Context(), storeID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"store_id": storeID, "history": points})
}

// GetArchive lists the plan documents archived by approvals for the date.
func (h *ForecastHandler) GetArchive(c *gin.Context) {
	storeID, ok := queryStoreID(c)
	if !ok {
		return
	}
	targetDate, ok := queryDate(c, "target_date")
	if !ok {
		return
	}

	objects, err := h.service.ArchivedPlans(c.Request.Context(), storeID, targetDate)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"store_id":    storeID,
		"target_date": domain.FormatDate(targetDate),
		"archives":    objects,
	})
}
