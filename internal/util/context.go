package util

import (
	"github.com/gin-gonic/gin"
	"github.com/reelhub/backend/internal/errors"
	"github.com/reelhub/backend/internal/models"
)

// Context keys set by the auth middleware
const (
	ContextUserKey   = "user"
	ContextUserIDKey = "user_id"
)

// GetUserFromContext extracts the authenticated user from the Gin context.
// If the user is not authenticated, it responds with 401 Unauthorized.
func GetUserFromContext(c *gin.Context) (*models.User, bool) {
	user, exists := c.Get(ContextUserKey)
	if !exists {
		RespondWithAPIError(c, errors.Unauthorized("user not authenticated"))
		return nil, false
	}
	userPtr, ok := user.(*models.User)
	if !ok {
		RespondWithAPIError(c, errors.InternalError("invalid user data in context"))
		return nil, false
	}
	return userPtr, true
}

// GetUserIDFromContext extracts the user ID from the Gin context.
// If the user is not authenticated, it responds with 401 Unauthorized.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID, exists := c.Get(ContextUserIDKey)
	if !exists {
		RespondWithAPIError(c, errors.Unauthorized("unauthorized"))
		return "", false
	}
	userIDStr, ok := userID.(string)
	if !ok || userIDStr == "" {
		RespondWithAPIError(c, errors.InternalError("invalid user ID in context"))
		return "", false
	}
	return userIDStr, true
}

// OptionalUserID returns the user id when the request is authenticated
func OptionalUserID(c *gin.Context) string {
	return c.GetString(ContextUserIDKey)
}
