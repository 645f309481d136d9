package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reelhub/backend/internal/util"
	"github.com/reelhub/backend/internal/wallet"
)

// GetWallet returns the caller's wallet
// GET /api/v1/wallet
func (h *Handlers) GetWallet(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	w, err := h.Wallet.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to load wallet")
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallet": w})
}

// GetWalletHistory pages through the caller's ledger, newest first
// GET /api/v1/wallet/transactions
func (h *Handlers) GetWalletHistory(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	limit, offset := util.ParsePagination(c)
	entries, total, err := h.Wallet.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, err, "Failed to load transactions")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": entries,
		"meta":         gin.H{"limit": limit, "offset": offset, "total": total},
	})
}

// CheckIn claims the daily check-in reward
// POST /api/v1/wallet/check-in
func (h *Handlers) CheckIn(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	entry, err := h.Wallet.CheckIn(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to check in")
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": entry})
}

// TransferCoins sends coins to another user
// POST /api/v1/wallet/transfer
func (h *Handlers) TransferCoins(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req wallet.TransferInput
	if !bindJSON(c, &req) {
		return
	}

	entry, err := h.Wallet.Transfer(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err, "Failed to transfer coins")
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": entry})
}

// AwardCoins credits a user; admins only
// POST /api/v1/admin/wallet/award
func (h *Handlers) AwardCoins(c *gin.Context) {
	var req struct {
		UserID    string `json:"user_id" binding:"required"`
		Amount    int64  `json:"amount" binding:"required,gt=0"`
		Reference string `json:"reference"`
	}
	if !bindJSON(c, &req) {
		return
	}

	entry, err := h.Wallet.AwardCoins(c.Request.Context(), req.UserID, req.Amount, wallet.ReasonAward, req.Reference)
	if err != nil {
		respondError(c, err, "Failed to award coins")
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": entry})
}

// EnrollTOTP starts two-factor enrolment for transfers
// POST /api/v1/wallet/2fa/enroll
func (h *Handlers) EnrollTOTP(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	enrollment, err := h.Wallet.EnrollTOTP(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to start two-factor setup")
		return
	}
	c.JSON(http.StatusOK, enrollment)
}

type totpRequest struct {
	Code string `json:"code" binding:"required,len=6,numeric"`
}

// ConfirmTOTP turns two-factor on with a first valid code
// POST /api/v1/wallet/2fa/confirm
func (h *Handlers) ConfirmTOTP(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req totpRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.Wallet.ConfirmTOTP(c.Request.Context(), userID, req.Code); err != nil {
		respondError(c, err, "Failed to enable two-factor")
		return
	}
	c.JSON(http.StatusOK, gin.H{"totp_enabled": true})
}

// DisableTOTP turns two-factor off
// POST /api/v1/wallet/2fa/disable
func (h *Handlers) DisableTOTP(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req totpRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.Wallet.DisableTOTP(c.Request.Context(), userID, req.Code); err != nil {
		respondError(c, err, "Failed to disable two-factor")
		return
	}
	c.JSON(http.StatusOK, gin.H{"totp_enabled": false})
}

// ListRewards lists the active reward catalog
// GET /api/v1/rewards
func (h *Handlers) ListRewards(c *gin.Context) {
	rewards, err := h.Wallet.Rewards(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to list rewards")
		return
	}
	c.JSON(http.StatusOK, gin.H{"rewards": rewards})
}

// CreateReward adds a catalog entry; admins only
// POST /api/v1/rewards
func (h *Handlers) CreateReward(c *gin.Context) {
	var req wallet.RewardInput
	if !bindJSON(c, &req) {
		return
	}
	reward, err := h.Wallet.CreateReward(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to create reward")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"reward": reward})
}

// PurchaseReward spends coins on a reward
// POST /api/v1/rewards/:id/purchase
func (h *Handlers) PurchaseReward(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	purchase, err := h.Wallet.PurchaseReward(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to purchase reward")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"purchase": purchase})
}
