package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/reelhub/backend/internal/search"
	"github.com/reelhub/backend/internal/util"
)

// SearchVideos runs a full-text video search
// GET /api/v1/search/videos?q=
func (h *Handlers) SearchVideos(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		util.RespondValidationError(c, "q", "search query is required")
		return
	}
	if h.searcher == nil {
		respondError(c, search.ErrDisabled, "Search unavailable")
		return
	}

	limit, offset := util.ParsePagination(c)
	results, err := h.searcher.SearchVideos(c.Request.Context(), query, limit, offset)
	if err != nil {
		respondError(c, err, "Search failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"videos": results.Videos,
		"meta":   gin.H{"limit": limit, "offset": offset, "total": results.Total, "query": query},
	})
}
