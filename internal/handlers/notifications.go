package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reelhub/backend/internal/util"
)

// GetNotifications lists the caller's notifications, newest first
// GET /api/v1/notifications?unread=true
func (h *Handlers) GetNotifications(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	limit, offset := util.ParsePagination(c)
	unreadOnly := c.Query("unread") == "true"

	items, total, err := h.Notifications.List(c.Request.Context(), userID, unreadOnly, limit, offset)
	if err != nil {
		respondError(c, err, "Failed to get notifications")
		return
	}
	unread, err := h.Notifications.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to get notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": items,
		"unread":        unread,
		"meta":          gin.H{"limit": limit, "offset": offset, "total": total},
	})
}

// GetNotificationCounts returns the unread badge count
// GET /api/v1/notifications/counts
func (h *Handlers) GetNotificationCounts(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	unread, err := h.Notifications.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to get notification counts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": unread})
}

// MarkNotificationsRead marks the given notifications read, or all of them
// when ids is empty
// POST /api/v1/notifications/read
func (h *Handlers) MarkNotificationsRead(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req struct {
		IDs []string `json:"ids"`
	}
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	updated, err := h.Notifications.MarkRead(c.Request.Context(), userID, req.IDs)
	if err != nil {
		respondError(c, err, "Failed to mark notifications read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// GetNotificationDeliveries lists the delivery attempts of one notification
// GET /api/v1/notifications/:id/deliveries
func (h *Handlers) GetNotificationDeliveries(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	logs, err := h.Notifications.DeliveryLogs(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to get deliveries")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deliveries": logs})
}

// GetNotificationPreferences lists per-kind channel preferences
// GET /api/v1/notifications/preferences
func (h *Handlers) GetNotificationPreferences(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	prefs, err := h.Notifications.Preferences(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to get preferences")
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}

// UpdateNotificationPreference sets the channels for one kind
// PUT /api/v1/notifications/preferences/:kind
func (h *Handlers) UpdateNotificationPreference(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req struct {
		InApp bool `json:"in_app"`
		Email bool `json:"email"`
	}
	if !bindJSON(c, &req) {
		return
	}

	pref, err := h.Notifications.SetPreference(c.Request.Context(), userID, c.Param("kind"), req.InApp, req.Email)
	if err != nil {
		respondError(c, err, "Failed to update preference")
		return
	}
	c.JSON(http.StatusOK, gin.H{"preference": pref})
}
