package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reelhub/backend/internal/settings"
	"github.com/reelhub/backend/internal/util"
)

const maxSettingsImport = 64 << 10

// GetSettings returns the caller's playback settings
// GET /api/v1/settings
func (h *Handlers) GetSettings(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	values, err := h.Settings.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to load settings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": values})
}

// UpdateSettings changes the supplied settings only
// PATCH /api/v1/settings
func (h *Handlers) UpdateSettings(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req settings.Patch
	if !bindJSON(c, &req) {
		return
	}

	values, err := h.Settings.Update(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err, "Failed to update settings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": values})
}

// ResetSettings restores the defaults
// POST /api/v1/settings/reset
func (h *Handlers) ResetSettings(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	values, err := h.Settings.Reset(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to reset settings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": values})
}

// ExportSettings downloads the settings as TOML
// GET /api/v1/settings/export
func (h *Handlers) ExportSettings(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	data, err := h.Settings.Export(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to export settings")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="reelhub-settings.toml"`)
	c.Data(http.StatusOK, "application/toml", data)
}

// ImportSettings replaces the settings from a TOML body
// POST /api/v1/settings/import
func (h *Handlers) ImportSettings(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSettingsImport))
	if err != nil || len(data) == 0 {
		util.RespondBadRequest(c, "settings file is required")
		return
	}

	values, err := h.Settings.Import(c.Request.Context(), userID, data)
	if err != nil {
		respondError(c, err, "Failed to import settings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": values})
}

// ListSettingsProfiles lists saved profiles
// GET /api/v1/settings/profiles
func (h *Handlers) ListSettingsProfiles(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	profiles, err := h.Settings.Profiles(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to list profiles")
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

// SaveSettingsProfile snapshots the current settings under a name
// POST /api/v1/settings/profiles
func (h *Handlers) SaveSettingsProfile(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Name      string `json:"name" binding:"required,max=50"`
		Overwrite bool   `json:"overwrite"`
	}
	if !bindJSON(c, &req) {
		return
	}

	profile, err := h.Settings.SaveProfile(c.Request.Context(), userID, req.Name, req.Overwrite)
	if err != nil {
		respondError(c, err, "Failed to save profile")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"profile": profile})
}

// ApplySettingsProfile makes a saved profile the current settings
// POST /api/v1/settings/profiles/:id/apply
func (h *Handlers) ApplySettingsProfile(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	values, err := h.Settings.ApplyProfile(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to apply profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": values})
}

// DeleteSettingsProfile deletes a saved profile
// DELETE /api/v1/settings/profiles/:id
func (h *Handlers) DeleteSettingsProfile(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	if err := h.Settings.DeleteProfile(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, err, "Failed to delete profile")
		return
	}
	c.Status(http.StatusNoContent)
}
