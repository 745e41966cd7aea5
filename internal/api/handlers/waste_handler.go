package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/andresuchdata/bakecast/internal/domain"
	"github.com/andresuchdata/bakecast/internal/service"
	"github.com/gin-gonic/gin"
)

type WasteService interface {
	Submit(ctx context.Context, req service.SubmitWasteRequest) ([]domain.WasteSubmission, error)
	Pending(ctx context.Context, storeID int64, wasteDate time.Time) ([]domain.WasteSubmission, error)
	Approve(ctx context.Context, req service.ApproveWasteRequest) (*service.WasteApprovalResult, error)
}

type WasteHandler struct {
	service WasteService
}

func NewWasteHandler(service WasteService) *WasteHandler {
	return &WasteHandler{service: service}
}

type submitWasteRequest struct {
	StoreID     int64               `json:"store_id"`
	WasteDate   string              `json:"waste_date"`
	SubmittedBy string              `json:"submitted_by"`
	Entries     []domain.WasteEntry `json:"entries"`
}

func (h *WasteHandler) Submit(c *gin.Context) {
	var req submitWasteRequest
	if !bindJSON(c, &req) {
		return
	}
	wasteDate, ok := bodyDate(c, "waste_date", req.WasteDate)
	if !ok {
		return
	}

	subs, err := h.service.Submit(c.Request.Context(), service.SubmitWasteRequest{
		StoreID:     req.StoreID,
		WasteDate:   wasteDate,
		SubmittedBy: req.SubmittedBy,
		Entries:     req.Entries,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"submissions": subs})
}

func (h *WasteHandler) GetPending(c *gin.Context) {
	storeID, ok := queryStoreID(c)
	if !ok {
		return
	}
	wasteDate, ok := queryDate(c, "waste_date")
	if !ok {
		return
	}

	subs, err := h.service.Pending(c.Request.Context(), storeID, wasteDate)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"submissions": subs})
}

type approveWasteRequest struct {
	StoreID       int64   `json:"store_id"`
	SubmissionIDs []int64 `json:"submission_ids"`
	ApprovedBy    string  `json:"approved_by"`
}

// Approve confirms submissions and recomputes accuracy for their dates.
func (h *WasteHandler) Approve(c *gin.Context) {
	var req approveWasteRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.service.Approve(c.Request.Context(), service.ApproveWasteRequest{
		StoreID:       req.StoreID,
		SubmissionIDs: req.SubmissionIDs,
		ApprovedBy:    req.ApprovedBy,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
