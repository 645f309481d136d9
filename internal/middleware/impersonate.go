package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/util"
	"go.uber.org/zap"
)

// ImpersonateHeader names the user an admin acts as
const ImpersonateHeader = "X-Impersonate-User"

// UserLookup finds a user by email
type UserLookup interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// AdminImpersonation lets an authenticated admin act as the user whose email
// is in X-Impersonate-User. It must run after Auth.
func AdminImpersonation(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.GetHeader(ImpersonateHeader)
		if email == "" {
			c.Next()
			return
		}

		admin, ok := util.GetUserFromContext(c)
		if !ok {
			c.Abort()
			return
		}
		if !admin.IsAdmin {
			util.RespondForbidden(c, "only admin users can impersonate other users")
			return
		}

		target, err := users.FindUserByEmail(c.Request.Context(), email)
		if err != nil {
			util.RespondNotFound(c, "impersonated user")
			return
		}

		setUser(c, target)

		logger.Log.Info("Admin impersonation",
			zap.String("admin_id", admin.ID),
			zap.String("impersonated_user_id", target.ID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)

		c.Next()
	}
}
