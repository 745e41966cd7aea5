package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/bakecast/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// respondError maps domain errors onto HTTP status codes. Persistence and
// unexpected errors are logged and hidden behind a generic message.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": strings.TrimPrefix(err.Error(), domain.ErrInvalidInput.Error()+": ")})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Error().Stack().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func queryStoreID(c *gin.Context) (int64, bool) {
	raw := strings.TrimSpace(c.Query("store_id"))
	if raw == "" {
		badRequest(c, "store_id is required")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "store_id must be a positive integer")
		return 0, false
	}
	return id, true
}

func queryDate(c *gin.Context, field string) (time.Time, bool) {
	t, err := domain.ParseDate(field, c.Query(field))
	if err != nil {
		respondError(c, err)
		return time.Time{}, false
	}
	return t, true
}

func bodyDate(c *gin.Context, field, value string) (time.Time, bool) {
	t, err := domain.ParseDate(field, value)
	if err != nil {
		respondError(c, err)
		return time.Time{}, false
	}
	return t, true
}

func parsePositiveIntWithDefault(value string, fallback int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && v > 0 {
		return v
	}
	return fallback
}

func parseBool(value string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && b
}
