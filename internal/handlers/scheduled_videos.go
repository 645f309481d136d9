package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reelhub/backend/internal/scheduler"
	"github.com/reelhub/backend/internal/util"
)

// CreateScheduledVideo queues a video for later publication
// POST /api/v1/scheduled-videos
func (h *Handlers) CreateScheduledVideo(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req scheduler.CreateInput
	if !bindJSON(c, &req) {
		return
	}

	sv, err := h.Scheduler.Create(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err, "Failed to schedule video")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"scheduled_video": sv})
}

// ListScheduledVideos lists the caller's scheduled videos, optionally by status
// GET /api/v1/scheduled-videos?status=pending
func (h *Handlers) ListScheduledVideos(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	limit, offset := util.ParsePagination(c)
	items, total, err := h.Scheduler.List(c.Request.Context(), userID, c.Query("status"), limit, offset)
	if err != nil {
		respondError(c, err, "Failed to list scheduled videos")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"scheduled_videos": items,
		"meta":             gin.H{"limit": limit, "offset": offset, "total": total},
	})
}

// GetScheduledVideo returns one of the caller's scheduled videos
// GET /api/v1/scheduled-videos/:id
func (h *Handlers) GetScheduledVideo(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	sv, err := h.Scheduler.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load scheduled video")
		return
	}
	c.JSON(http.StatusOK, gin.H{"scheduled_video": sv})
}

// CancelScheduledVideo cancels a pending scheduled video
// DELETE /api/v1/scheduled-videos/:id
func (h *Handlers) CancelScheduledVideo(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	sv, err := h.Scheduler.Cancel(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to cancel scheduled video")
		return
	}
	c.JSON(http.StatusOK, gin.H{"scheduled_video": sv})
}

// RunScheduledPublish runs one publish pass now; admins only
// POST /api/v1/admin/scheduled-videos/run
func (h *Handlers) RunScheduledPublish(c *gin.Context) {
	batch := util.ParseInt(c.Query("batch_size"), 50)
	summary, err := h.Scheduler.RunOnce(c.Request.Context(), batch)
	if err != nil {
		respondError(c, err, "Failed to run publish pass")
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}
