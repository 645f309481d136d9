package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reelhub/backend/internal/collections"
	"github.com/reelhub/backend/internal/util"
)

// CreateCollection creates a collection
// POST /api/v1/collections
func (h *Handlers) CreateCollection(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req collections.CreateInput
	if !bindJSON(c, &req) {
		return
	}

	col, err := h.Collections.Create(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err, "Failed to create collection")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"collection": col})
}

// ListCollections lists the caller's collections, or ?user_id= for another
// user's public ones
// GET /api/v1/collections
func (h *Handlers) ListCollections(c *gin.Context) {
	viewerID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	ownerID := c.DefaultQuery("user_id", viewerID)

	cols, err := h.Collections.List(c.Request.Context(), ownerID, viewerID)
	if err != nil {
		respondError(c, err, "Failed to list collections")
		return
	}
	c.JSON(http.StatusOK, gin.H{"collections": cols})
}

// GetCollection returns a collection with its items
// GET /api/v1/collections/:id
func (h *Handlers) GetCollection(c *gin.Context) {
	viewerID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	col, err := h.Collections.Get(c.Request.Context(), viewerID, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load collection")
		return
	}
	c.JSON(http.StatusOK, gin.H{"collection": col})
}

// UpdateCollection renames or changes the privacy of a collection
// PATCH /api/v1/collections/:id
func (h *Handlers) UpdateCollection(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req collections.UpdateInput
	if !bindJSON(c, &req) {
		return
	}

	col, err := h.Collections.Update(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		respondError(c, err, "Failed to update collection")
		return
	}
	c.JSON(http.StatusOK, gin.H{"collection": col})
}

// DeleteCollection deletes a collection
// DELETE /api/v1/collections/:id
func (h *Handlers) DeleteCollection(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	if err := h.Collections.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, err, "Failed to delete collection")
		return
	}
	c.Status(http.StatusNoContent)
}

// AddCollectionVideo adds a video to a collection
// POST /api/v1/collections/:id/videos
func (h *Handlers) AddCollectionVideo(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req struct {
		VideoID string `json:"video_id" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	item, err := h.Collections.AddVideo(c.Request.Context(), userID, c.Param("id"), req.VideoID)
	if err != nil {
		respondError(c, err, "Failed to add video")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"item": item})
}

// RemoveCollectionVideo removes a video from a collection
// DELETE /api/v1/collections/:id/videos/:video_id
func (h *Handlers) RemoveCollectionVideo(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	if err := h.Collections.RemoveVideo(c.Request.Context(), userID, c.Param("id"), c.Param("video_id")); err != nil {
		respondError(c, err, "Failed to remove video")
		return
	}
	c.Status(http.StatusNoContent)
}

// SaveVideo bookmarks a video into the default collection
// POST /api/v1/videos/:id/save
func (h *Handlers) SaveVideo(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	if err := h.Collections.SaveToDefault(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, err, "Failed to save video")
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": true})
}
