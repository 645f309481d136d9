package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/reelhub/backend/internal/auth"
	"github.com/reelhub/backend/internal/errors"
	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/util"
)

const oauthStateCookie = "reelhub_oauth_state"

// Register creates a native account
// POST /api/v1/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.Auth.RegisterNativeUser(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to register")
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Login signs in with email and password
// POST /api/v1/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req auth.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.Auth.LoginNativeUser(c.Request.Context(), req)
	if stderrors.Is(err, auth.ErrUserNotFound) {
		// unknown emails look like bad passwords
		err = auth.ErrInvalidCredentials
	}
	if err != nil {
		logger.Log.Debug("Login rejected", logger.WithIP(c.ClientIP()))
		respondError(c, err, "Failed to sign in")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Me returns the signed-in user
// GET /api/v1/auth/me
func (h *Handlers) Me(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// GoogleLogin redirects to the Google consent screen
// GET /api/v1/auth/google
func (h *Handlers) GoogleLogin(c *gin.Context) {
	state := uuid.New().String()
	url, err := h.Auth.GetGoogleOAuthURL(state)
	if err != nil {
		respondError(c, err, "Failed to start Google login")
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, 600, "/", "", c.Request.TLS != nil, true)
	c.Redirect(http.StatusTemporaryRedirect, url)
}

// GoogleCallback finishes the Google login
// GET /api/v1/auth/google/callback
func (h *Handlers) GoogleCallback(c *gin.Context) {
	state, err := c.Cookie(oauthStateCookie)
	if err != nil || state == "" || state != c.Query("state") {
		util.RespondWithAPIError(c, errors.BadRequest("invalid oauth state"))
		return
	}
	c.SetCookie(oauthStateCookie, "", -1, "/", "", c.Request.TLS != nil, true)

	code := c.Query("code")
	if code == "" {
		util.RespondBadRequest(c, "missing authorization code")
		return
	}

	resp, err := h.Auth.HandleGoogleCallback(c.Request.Context(), code)
	if err != nil {
		respondError(c, err, "Google login failed")
		return
	}
	c.JSON(http.StatusOK, resp)
}
