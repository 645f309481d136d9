package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reelhub/backend/internal/errors"
	"github.com/reelhub/backend/internal/util"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// Requests per window
	Limit int
	// Window duration
	Window time.Duration
	// KeyFunc picks the bucket; defaults to the user id, then the client IP
	KeyFunc func(c *gin.Context) string
}

// DefaultRateLimitConfig allows 100 requests per minute
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Limit: 100, Window: time.Minute, KeyFunc: clientKey}
}

// AuthRateLimitConfig allows 10 requests per minute for sign-in endpoints
func AuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Limit: 10, Window: time.Minute, KeyFunc: clientKey}
}

// UploadRateLimitConfig allows 20 uploads per minute
func UploadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Limit: 20, Window: time.Minute, KeyFunc: clientKey}
}

func clientKey(c *gin.Context) string {
	if userID := c.GetString("user_id"); userID != "" {
		return "user:" + userID
	}
	return "ip:" + c.ClientIP()
}

// TokenBucket refills continuously at refillRate tokens per second
type TokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time
}

// NewTokenBucket creates a full bucket
func NewTokenBucket(maxTokens float64, refillRate float64, now time.Time) *TokenBucket {
	return &TokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: now,
	}
}

// Allow takes a token if one is available. When none is, it also returns
// the seconds until the next token.
func (tb *TokenBucket) Allow(now time.Time) (bool, int) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = math.Min(tb.maxTokens, tb.tokens+elapsed*tb.refillRate)
	tb.lastRefill = now

	if tb.tokens >= 1 {
		tb.tokens--
		return true, 0
	}
	return false, int(math.Ceil((1 - tb.tokens) / tb.refillRate))
}

func (tb *TokenBucket) full(now time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.tokens+now.Sub(tb.lastRefill).Seconds()*tb.refillRate >= tb.maxTokens
}

// RateLimiter keeps one token bucket per key in process memory
type RateLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*TokenBucket
	config      RateLimitConfig
	now         func() time.Time
	lastCleanup time.Time
}

// NewRateLimiter creates a limiter; call Middleware to use it
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = clientKey
	}
	return &RateLimiter{
		buckets: make(map[string]*TokenBucket),
		config:  config,
		now:     time.Now,
	}
}

// Allow reports whether key may make a request now
func (rl *RateLimiter) Allow(key string) (bool, int) {
	now := rl.now()

	rl.mu.Lock()
	if now.Sub(rl.lastCleanup) > rl.config.Window {
		rl.cleanup(now)
	}
	bucket, exists := rl.buckets[key]
	if !exists {
		refillRate := float64(rl.config.Limit) / rl.config.Window.Seconds()
		bucket = NewTokenBucket(float64(rl.config.Limit), refillRate, now)
		rl.buckets[key] = bucket
	}
	rl.mu.Unlock()

	return bucket.Allow(now)
}

// cleanup drops buckets that have refilled completely; rl.mu must be held
func (rl *RateLimiter) cleanup(now time.Time) {
	for key, bucket := range rl.buckets {
		if bucket.full(now) {
			delete(rl.buckets, key)
		}
	}
	rl.lastCleanup = now
}

// Middleware rejects requests over the limit with 429 and Retry-After
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter := rl.Allow(rl.config.KeyFunc(c))
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.Limit))
		if !allowed {
			RecordRateLimitExceeded(routeLabel(c), c.Request.Method)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.Header("X-RateLimit-Remaining", "0")
			util.RespondWithAPIError(c, errors.RateLimited(""))
			return
		}
		c.Next()
	}
}

// RateLimit returns an in-memory limiter middleware with the given config
func RateLimit(config RateLimitConfig) gin.HandlerFunc {
	return NewRateLimiter(config).Middleware()
}
