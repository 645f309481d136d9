package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reelhub/backend/internal/database"
	"github.com/reelhub/backend/internal/logger"
	"go.uber.org/zap"
)

// HealthCheck reports database and cache connectivity
// GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := gin.H{"database": "ok"}
	status := http.StatusOK

	if err := database.Health(h.db); err != nil {
		logger.Log.Warn("Health check: database unreachable", zap.Error(err))
		checks["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if h.cache != nil {
		checks["cache"] = "ok"
		if err := h.cache.Ping(ctx); err != nil {
			// the API degrades without cache, so this doesn't fail the check
			logger.Log.Warn("Health check: cache unreachable", zap.Error(err))
			checks["cache"] = "unavailable"
		}
	}
	if h.hub != nil {
		checks["online_users"] = len(h.hub.GetOnlineUsers())
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":    state,
		"service":   "reelhub-backend",
		"checks":    checks,
		"timestamp": time.Now().UTC(),
	})
}
