package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reelhub/backend/internal/cache"
	"github.com/reelhub/backend/internal/errors"
	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/util"
	"go.uber.org/zap"
)

// SharedRateLimit counts requests in fixed windows in the shared store so the
// limit holds across instances. A failing store rejects with 503.
func SharedRateLimit(store cache.Store, name string, config RateLimitConfig) gin.HandlerFunc {
	if store == nil {
		return RateLimit(config)
	}
	if config.KeyFunc == nil {
		config.KeyFunc = clientKey
	}

	return func(c *gin.Context) {
		key := cache.Key("rate_limit", name, config.KeyFunc(c))

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		count, ttl, err := store.IncrWindow(ctx, key, config.Window)
		if err != nil {
			logger.Log.Error("Rate limit check failed", logger.WithIP(c.ClientIP()), zap.Error(err))
			util.RespondWithAPIError(c, errors.ServiceUnavailable("rate limiter"))
			return
		}

		remaining := int64(config.Limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(config.Limit) {
			RecordRateLimitExceeded(routeLabel(c), c.Request.Method)
			retryAfter := int(ttl.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			util.RespondWithAPIError(c, errors.RateLimited(""))
			return
		}

		c.Next()
	}
}
