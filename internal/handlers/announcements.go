package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reelhub/backend/internal/errors"
	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/realtime"
	"github.com/reelhub/backend/internal/util"
	"go.uber.org/zap"
)

// Announce pushes a system message to every connected websocket client
// POST /api/v1/admin/announcements
func (h *Handlers) Announce(c *gin.Context) {
	if h.hub == nil {
		util.RespondWithAPIError(c, errors.ServiceUnavailable("realtime"))
		return
	}

	var req struct {
		Message string                 `json:"message" binding:"required,max=500"`
		Data    map[string]interface{} `json:"data"`
	}
	if !bindJSON(c, &req) {
		return
	}

	h.hub.Broadcast(realtime.NewMessage(realtime.MessageTypeSystem, realtime.SystemPayload{
		Event:   "announcement",
		Message: req.Message,
		Data:    req.Data,
	}))

	online := len(h.hub.GetOnlineUsers())
	logger.Log.Info("Announcement broadcast", zap.Int("online_users", online))
	c.JSON(http.StatusAccepted, gin.H{"online_users": online})
}
