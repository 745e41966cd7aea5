package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/bakecast/internal/api/handlers"
	"github.com/andresuchdata/bakecast/internal/api/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Services groups the handler dependencies. Nil members leave their routes unregistered.
type Services struct {
	Forecast handlers.ForecastService
	Learning handlers.LearningService
	Accuracy handlers.AccuracyService
	Waste    handlers.WasteService
	Catalog  handlers.CatalogService
	Audit    handlers.AuditService
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")

	if services == nil {
		return router
	}

	if services.Forecast != nil {
		forecastHandler := handlers.NewForecastHandler(services.Forecast)
		forecastGroup := apiGroup.Group("/forecast")
		{
			forecastGroup.GET("", forecastHandler.GetForecast)
			forecastGroup.GET("/pending", forecastHandler.GetPending)
			forecastGroup.GET("/approvals", forecastHandler.GetApprovals)
			forecastGroup.POST("/approve", forecastHandler.Approve)
			forecastGroup.POST("/context", forecastHandler.SaveContext)
			forecastGroup.POST("/context/apply", forecastHandler.ApplyContext)
			forecastGroup.GET("/history", forecastHandler.GetHistory)
			forecastGroup.GET("/archive", forecastHandler.GetArchive)
		}
	}

	if services.Learning != nil && services.Accuracy != nil {
		feedbackHandler := handlers.NewFeedbackHandler(services.Learning, services.Accuracy)
		feedbackGroup := apiGroup.Group("/forecast")
		{
			feedbackGroup.POST("/learning/update", feedbackHandler.UpdateLearning)
			feedbackGroup.GET("/learning", feedbackHandler.GetLearning)
			feedbackGroup.POST("/accuracy/compute", feedbackHandler.ComputeAccuracy)
			feedbackGroup.GET("/accuracy", feedbackHandler.GetAccuracy)
		}
	}

	if services.Waste != nil {
		wasteHandler := handlers.NewWasteHandler(services.Waste)
		wasteGroup := apiGroup.Group("/waste")
		{
			wasteGroup.POST("/submit", wasteHandler.Submit)
			wasteGroup.GET("/pending", wasteHandler.GetPending)
			wasteGroup.POST("/approve", wasteHandler.Approve)
		}
	}

	if services.Catalog != nil {
		catalogHandler := handlers.NewCatalogHandler(services.Catalog)
		apiGroup.GET("/products", catalogHandler.GetProducts)
		apiGroup.POST("/products", catalogHandler.CreateProduct)
		apiGroup.POST("/daily-actuals", catalogHandler.RecordDailyActual)
	}

	if services.Audit != nil {
		auditHandler := handlers.NewAuditHandler(services.Audit)
		apiGroup.GET("/audit", auditHandler.GetEvents)
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		for _, part := range strings.Split(origin, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
