package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reelhub/backend/internal/analytics"
	"github.com/reelhub/backend/internal/util"
)

// GetCreatorDashboard returns the caller's creator analytics
// GET /api/v1/analytics/dashboard?days=30
func (h *Handlers) GetCreatorDashboard(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	days := analytics.ClampDays(util.ParseInt(c.Query("days"), analytics.DefaultDays))
	dashboard, err := h.Analytics.Dashboard(c.Request.Context(), userID, days)
	if err != nil {
		respondError(c, err, "Failed to load analytics")
		return
	}
	c.JSON(http.StatusOK, gin.H{"dashboard": dashboard, "days": days})
}
