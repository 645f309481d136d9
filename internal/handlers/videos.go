package handlers

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/util"
	"github.com/reelhub/backend/internal/videos"
)

// GetFeed returns the global feed, newest first
// GET /api/v1/feed
func (h *Handlers) GetFeed(c *gin.Context) {
	limit, offset := util.ParsePagination(c)
	items, err := h.Videos.Feed(c.Request.Context(), util.OptionalUserID(c), limit, offset)
	if err != nil {
		respondError(c, err, "Failed to load feed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"videos": items,
		"meta":   gin.H{"limit": limit, "offset": offset, "count": len(items)},
	})
}

// GetUserVideos lists one creator's videos
// GET /api/v1/users/:id/videos
func (h *Handlers) GetUserVideos(c *gin.Context) {
	var owner models.User
	if util.HandleDBError(c, h.db.WithContext(c.Request.Context()).Select("id").First(&owner, "id = ?", c.Param("id")).Error, "user") {
		return
	}

	limit, offset := util.ParsePagination(c)
	items, err := h.Videos.UserVideos(c.Request.Context(), util.OptionalUserID(c), c.Param("id"), limit, offset)
	if err != nil {
		respondError(c, err, "Failed to load videos")
		return
	}
	c.JSON(http.StatusOK, gin.H{"videos": items})
}

// GetVideo returns one video
// GET /api/v1/videos/:id
func (h *Handlers) GetVideo(c *gin.Context) {
	item, err := h.Videos.Get(c.Request.Context(), util.OptionalUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load video")
		return
	}
	c.JSON(http.StatusOK, gin.H{"video": item})
}

// CreateVideo publishes a video whose media is already hosted
// POST /api/v1/videos
func (h *Handlers) CreateVideo(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req videos.CreateInput
	if !bindJSON(c, &req) {
		return
	}

	video, err := h.Videos.Create(c.Request.Context(), userID, req, nil)
	if err != nil {
		respondError(c, err, "Failed to create video")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"video": video})
}

// UploadVideo stores the uploaded media and publishes the video
// POST /api/v1/videos/upload (multipart: video, thumbnail, title, ...)
func (h *Handlers) UploadVideo(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	videoHeader, err := c.FormFile("video")
	if err != nil {
		util.RespondBadRequest(c, "video file is required")
		return
	}
	title := c.PostForm("title")
	if title == "" {
		util.RespondValidationError(c, "title", "title is required")
		return
	}

	videoFile, err := videoHeader.Open()
	if err != nil {
		util.RespondBadRequest(c, "unreadable video file")
		return
	}
	defer videoFile.Close()

	var thumbnail *videos.File
	if thumbHeader, err := c.FormFile("thumbnail"); err == nil {
		var thumbFile multipart.File
		thumbFile, err = thumbHeader.Open()
		if err != nil {
			util.RespondBadRequest(c, "unreadable thumbnail")
			return
		}
		defer thumbFile.Close()
		thumbnail = &videos.File{Name: thumbHeader.Filename, Body: thumbFile}
	}

	in := videos.CreateInput{
		Title:           title,
		Description:     c.PostForm("description"),
		Tags:            util.ParseList(c.PostForm("tags")),
		DurationSeconds: util.ParseFloat(c.PostForm("duration_seconds"), 0),
	}
	if v := c.PostForm("is_public"); v != "" {
		public := v == "true" || v == "1"
		in.IsPublic = &public
	}

	video, err := h.Videos.Upload(c.Request.Context(), userID,
		videos.File{Name: videoHeader.Filename, Body: videoFile}, thumbnail, in)
	if err != nil {
		respondError(c, err, "Failed to upload video")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"video": video})
}

// DeleteVideo removes a video; owners and admins only
// DELETE /api/v1/videos/:id
func (h *Handlers) DeleteVideo(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	if err := h.Videos.Delete(c.Request.Context(), user, c.Param("id")); err != nil {
		respondError(c, err, "Failed to delete video")
		return
	}
	c.Status(http.StatusNoContent)
}

// LikeVideo likes a video; repeating it is a no-op
// POST /api/v1/videos/:id/like
func (h *Handlers) LikeVideo(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	count, err := h.Videos.LikeVideo(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to like video")
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": true, "like_count": count})
}

// UnlikeVideo removes a like
// DELETE /api/v1/videos/:id/like
func (h *Handlers) UnlikeVideo(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	count, err := h.Videos.UnlikeVideo(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to unlike video")
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": false, "like_count": count})
}

// RecordView stores a playback of the video
// POST /api/v1/videos/:id/views
func (h *Handlers) RecordView(c *gin.Context) {
	var req videos.ViewInput
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.Videos.RecordView(c.Request.Context(), util.OptionalUserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err, "Failed to record view")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"view": view})
}
