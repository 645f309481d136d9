package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/util"
	"go.uber.org/zap"
)

// TokenValidator resolves a bearer token to its user
type TokenValidator interface {
	ValidateToken(tokenString string) (*models.User, error)
}

// Auth rejects requests without a valid bearer token and stores the user
// under "user" and its id under "user_id".
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			util.RespondUnauthorized(c, "missing authorization token")
			return
		}

		user, err := validator.ValidateToken(token)
		if err != nil {
			logger.Log.Debug("Rejected token", logger.WithIP(c.ClientIP()), zap.Error(err))
			util.RespondUnauthorized(c, "invalid or expired token")
			return
		}

		setUser(c, user)
		c.Next()
	}
}

// OptionalAuth sets the user when a valid token is present and lets
// anonymous requests through.
func OptionalAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if user, err := validator.ValidateToken(token); err == nil {
				setUser(c, user)
			}
		}
		c.Next()
	}
}

func setUser(c *gin.Context, user *models.User) {
	c.Set(util.ContextUserKey, user)
	c.Set(util.ContextUserIDKey, user.ID)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
