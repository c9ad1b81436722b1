package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/radlabs/rampd/internal/infrastructure/database"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db *database.DBManager
}

func NewHealthHandler(db *database.DBManager) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health returns basic liveness status
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "rampd",
		"version":   "1.0.0",
		"timestamp": time.Now(),
	})
}

// Ready reports whether the receipt store is reachable
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.db != nil {
		if err := h.db.Pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"service":   "rampd",
		"version":   "1.0.0",
		"timestamp": time.Now(),
	})
}
