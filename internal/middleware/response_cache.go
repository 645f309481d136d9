package middleware

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reelhub/backend/internal/cache"
	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/metrics"
	"go.uber.org/zap"
)

const responseCacheName = "response_cache"

// ResponseCachePrefix prefixes every cached response key
const ResponseCachePrefix = "response:"

// ResponseCacheMiddleware caches successful anonymous GET responses for ttl
// and sets X-Cache: HIT/MISS. Authenticated requests bypass the cache because
// their bodies carry per-user fields such as liked flags.
func ResponseCacheMiddleware(store cache.Store, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || c.Request.Method != http.MethodGet || c.GetString("user_id") != "" {
			c.Next()
			return
		}

		cacheKey := responseCacheKey(c.Request.URL.Path, c.Request.URL.RawQuery)
		ctx := c.Request.Context()

		startTime := time.Now()
		cachedData, err := store.Get(ctx, cacheKey)
		metrics.RecordCacheOperation("GET", responseCacheName, time.Since(startTime))

		if err == nil {
			metrics.RecordCacheHit(responseCacheName)
			c.Header("X-Cache", "HIT")
			c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", int(ttl.Seconds())))
			c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(cachedData))
			c.Abort()
			return
		}
		metrics.RecordCacheMiss(responseCacheName)

		writer := &cachedResponseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer
		c.Header("X-Cache", "MISS")
		c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", int(ttl.Seconds())))

		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 || writer.body.Len() == 0 {
			return
		}

		setStartTime := time.Now()
		if err := store.SetEx(ctx, cacheKey, writer.body.String(), ttl); err != nil {
			logger.Log.Debug("Failed to write response to cache", zap.String("key", cacheKey), zap.Error(err))
			return
		}
		metrics.RecordCacheOperation("SET", responseCacheName, time.Since(setStartTime))
	}
}

func responseCacheKey(path, query string) string {
	if query == "" {
		return ResponseCachePrefix + path
	}
	return ResponseCachePrefix + path + "?" + query
}

// cachedResponseWriter captures the response body for caching
type cachedResponseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *cachedResponseWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *cachedResponseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// CacheInvalidationMiddleware drops cached responses under the given paths
// after a successful POST, PUT, PATCH or DELETE
func CacheInvalidationMiddleware(store cache.Store, paths ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			return
		}
		if store == nil || c.Writer.Status() >= 400 {
			return
		}

		for _, path := range paths {
			if err := store.DelPrefix(c.Request.Context(), ResponseCachePrefix+path); err != nil {
				logger.Log.Warn("Failed to invalidate cache", zap.String("path", path), zap.Error(err))
			}
		}
	}
}
