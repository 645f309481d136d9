package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/reelhub/backend/internal/util"
)

// RequireAdmin must run after Auth and rejects non-admin users
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := util.GetUserFromContext(c)
		if !ok {
			c.Abort()
			return
		}

		if !user.IsAdmin {
			util.RespondForbidden(c, "admin access required")
			return
		}

		c.Next()
	}
}
