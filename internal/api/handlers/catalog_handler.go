package handlers

import (
	"context"
	"net/http"

	"github.com/andresuchdata/bakecast/internal/domain"
	"github.com/gin-gonic/gin"
)

type CatalogService interface {
	ListProducts(ctx context.Context, storeID int64) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product *domain.Product) error
	RecordDailyActual(ctx context.Context, actual domain.DailyActual) error
}

type CatalogHandler struct {
	service CatalogService
}

func NewCatalogHandler(service CatalogService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

func (h *CatalogHandler) GetProducts(c *gin.Context) {
	storeID, ok := queryStoreID(c)
	if !ok {
		return
	}

	products, err := h.service.ListProducts(c.Request.Context(), storeID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, products)
}

type createProductRequest struct {
	Name     string `json:"product_name"`
	Category string `json:"category"`
	StoreID  *int64 `json:"store_id"`
}

func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req createProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product := &domain.Product{Name: req.Name, Category: req.Category, StoreID: req.StoreID}
	if err := h.service.CreateProduct(c.Request.Context(), product); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

type dailyActualRequest struct {
	StoreID   int64  `json:"store_id"`
	ProductID int64  `json:"product_id"`
	Date      string `json:"date"`
	Produced  int    `json:"produced"`
	Waste     int    `json:"waste"`
}

// RecordDailyActual upserts one product's produced and waste counts for a day.
func (h *CatalogHandler) RecordDailyActual(c *gin.Context) {
	var req dailyActualRequest
	if !bindJSON(c, &req) {
		return
	}
	date, ok := bodyDate(c, "date", req.Date)
	if !ok {
		return
	}

	actual := domain.DailyActual{
		StoreID:   req.StoreID,
		ProductID: req.ProductID,
		Date:      date,
		Produced:  req.Produced,
		Waste:     req.Waste,
		Source:    "api",
	}
	if err := h.service.RecordDailyActual(c.Request.Context(), actual); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, actual)
}
