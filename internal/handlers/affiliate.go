package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reelhub/backend/internal/affiliate"
	"github.com/reelhub/backend/internal/util"
)

// ListAffiliateTiers lists commission tiers, lowest threshold first
// GET /api/v1/affiliate/tiers
func (h *Handlers) ListAffiliateTiers(c *gin.Context) {
	tiers, err := h.Affiliate.Tiers(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to list tiers")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tiers": tiers})
}

// CreateAffiliateLink creates a referral code, optionally for one product
// POST /api/v1/affiliate/links
func (h *Handlers) CreateAffiliateLink(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req struct {
		ProductID *string `json:"product_id"`
	}
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	link, err := h.Affiliate.CreateLink(c.Request.Context(), userID, req.ProductID)
	if err != nil {
		respondError(c, err, "Failed to create link")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"link": link})
}

// ListAffiliateLinks lists the caller's referral codes
// GET /api/v1/affiliate/links
func (h *Handlers) ListAffiliateLinks(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	links, err := h.Affiliate.Links(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to list links")
		return
	}
	c.JSON(http.StatusOK, gin.H{"links": links})
}

// TrackAffiliateClick counts a visit through a referral code
// POST /api/v1/affiliate/links/:code/click
func (h *Handlers) TrackAffiliateClick(c *gin.Context) {
	link, err := h.Affiliate.RecordClick(c.Request.Context(), c.Param("code"))
	if stderrors.Is(err, affiliate.ErrInvalidCode) {
		util.RespondNotFound(c, "affiliate code")
		return
	}
	if err != nil {
		respondError(c, err, "Failed to record click")
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": link.Code, "product_id": link.ProductID})
}

// GetAffiliateSummary reports the caller's tier, sales and commission totals
// GET /api/v1/affiliate/summary
func (h *Handlers) GetAffiliateSummary(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	summary, err := h.Affiliate.Summary(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to load affiliate summary")
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// ListCommissions pages through the caller's commissions
// GET /api/v1/affiliate/commissions
func (h *Handlers) ListCommissions(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	limit, offset := util.ParsePagination(c)
	commissions, err := h.Affiliate.Commissions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, err, "Failed to list commissions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"commissions": commissions})
}

// PayoutCommissions moves pending commission into the wallet
// POST /api/v1/affiliate/payout
func (h *Handlers) PayoutCommissions(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	entry, err := h.Affiliate.Payout(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to pay out commissions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": entry})
}
