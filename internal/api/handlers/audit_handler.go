package handlers

import (
	"context"
	"net/http"

	"github.com/andresuchdata/bakecast/internal/domain"
	"github.com/gin-gonic/gin"
)

type AuditService interface {
	List(ctx context.Context, storeID int64, limit int) ([]domain.AuditEvent, error)
}

type AuditHandler struct {
	service AuditService
}

func NewAuditHandler(service AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

// GetEvents lists the newest audit events for a store.
func (h *AuditHandler) GetEvents(c *gin.Context) {
	storeID, ok := queryStoreID(c)
	if !ok {
		return
	}
	limit := parsePositiveIntWithDefault(c.Query("limit"), 50)

	events, err := h.service.List(c.Request.Context(), storeID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"store_id": storeID, "events": events})
}
