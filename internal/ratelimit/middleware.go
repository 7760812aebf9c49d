package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Rule limits one route group
type Rule struct {
	Name   string
	Limit  int64
	Window time.Duration
	// Key identifies the caller; client IP when nil
	Key func(c *gin.Context) string
}

// Limit rejects callers past rule.Limit requests per window with 429 and
// Retry-After. A failing counter lets the request through.
func Limit(counter Counter, rule Rule, logger *zap.Logger) gin.HandlerFunc {
	keyFn := rule.Key
	if keyFn == nil {
		keyFn = func(c *gin.Context) string { return c.ClientIP() }
	}
	retryAfter := strconv.Itoa(int(math.Ceil(rule.Window.Seconds())))

	return func(c *gin.Context) {
		if rule.Limit <= 0 {
			c.Next()
			return
		}

		key := rule.Name + ":" + keyFn(c)
		count, err := counter.Incr(c.Request.Context(), key, rule.Window)
		if err != nil {
			logger.Warn("Rate limit counter unavailable, allowing request",
				zap.String("rule", rule.Name),
				zap.Error(err))
			c.Next()
			return
		}

		remaining := rule.Limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.FormatInt(rule.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > rule.Limit {
			logger.Info("Rate limit exceeded",
				zap.String("rule", rule.Name),
				zap.String("client", c.ClientIP()),
				zap.Int64("count", count))
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
