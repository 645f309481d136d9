package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reelhub/backend/internal/livestream"
	"github.com/reelhub/backend/internal/util"
)

// CreateLiveStream schedules a live stream
// POST /api/v1/live
func (h *Handlers) CreateLiveStream(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req livestream.CreateInput
	if !bindJSON(c, &req) {
		return
	}

	ls, err := h.Live.Create(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err, "Failed to create live stream")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"stream": ls})
}

// ListLiveStreams lists streams, live ones by default
// GET /api/v1/live?status=live
func (h *Handlers) ListLiveStreams(c *gin.Context) {
	limit, offset := util.ParsePagination(c)
	streams, total, err := h.Live.List(c.Request.Context(), c.DefaultQuery("status", "live"), limit, offset)
	if err != nil {
		respondError(c, err, "Failed to list live streams")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"streams": streams,
		"meta":    gin.H{"limit": limit, "offset": offset, "total": total},
	})
}

// GetLiveStream returns one stream
// GET /api/v1/live/:id
func (h *Handlers) GetLiveStream(c *gin.Context) {
	ls, err := h.Live.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load live stream")
		return
	}
	c.JSON(http.StatusOK, gin.H{"stream": ls})
}

// StartLiveStream goes live
// POST /api/v1/live/:id/start
func (h *Handlers) StartLiveStream(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	ls, err := h.Live.Start(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to start live stream")
		return
	}
	c.JSON(http.StatusOK, gin.H{"stream": ls})
}

// EndLiveStream ends a live or scheduled stream
// POST /api/v1/live/:id/end
func (h *Handlers) EndLiveStream(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	ls, err := h.Live.End(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to end live stream")
		return
	}
	c.JSON(http.StatusOK, gin.H{"stream": ls})
}

// JoinLiveStream counts the caller in (delta 1) or out (delta -1)
// POST /api/v1/live/:id/viewers
func (h *Handlers) JoinLiveStream(c *gin.Context) {
	var req struct {
		Delta int `json:"delta" binding:"required,oneof=1 -1"`
	}
	if !bindJSON(c, &req) {
		return
	}
	ls, err := h.Live.AdjustViewers(c.Request.Context(), c.Param("id"), req.Delta)
	if err != nil {
		respondError(c, err, "Failed to update viewers")
		return
	}
	c.JSON(http.StatusOK, gin.H{"viewer_count": ls.ViewerCount, "peak_viewers": ls.PeakViewers})
}

// GetLiveChatToken issues chat credentials for the stream channel
// GET /api/v1/live/:id/chat-token
func (h *Handlers) GetLiveChatToken(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	creds, err := h.Live.ChatToken(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to issue chat token")
		return
	}
	c.JSON(http.StatusOK, creds)
}
