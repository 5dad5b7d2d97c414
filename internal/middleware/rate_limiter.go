package middleware

import (
	_ "embed"
	"fmt"
	"math"
	"strconv"
	"time"

	"blog_api/internal/apperror"
	"blog_api/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

//go:embed rate_limiter.lua
var luaScript string

var tokenBucket = redis.NewScript(luaScript)

// clock is replaced in tests.
var clock = time.Now

// RateLimiterConfig holds rate limiter configuration
type RateLimiterConfig struct {
	Capacity   int     // Maximum number of tokens (max requests)
	RefillRate float64 // Tokens refilled per second
}

// KeyFunc picks the bucket a request is charged to. ok is false when the
// request carries nothing to key on.
type KeyFunc func(c *gin.Context) (key string, ok bool)

// ClientIPKey buckets anonymous requests by client address.
func ClientIPKey(c *gin.Context) (string, bool) {
	return ClientRateLimiterKey(c.ClientIP()), true
}

// UserKey buckets authenticated requests by user. It must run after
// SessionMiddleware.
func UserKey(c *gin.Context) (string, bool) {
	identity, err := auth.GetIdentityFromContext(c)
	if err != nil {
		return "", false
	}
	return UserRateLimiterKey(identity.ID), true
}

// RateLimiterMiddleware implements Token Bucket algorithm using Redis + Lua script.
// Redis errors let the request through.
func RateLimiterMiddleware(redisClient *redis.Client, config *RateLimiterConfig, keyFn KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := keyFn(c)
		if !ok {
			apperror.Abort(c, apperror.Unauthenticated, "Authentication required")
			return
		}

		allowed, err := tokenBucket.Run(c.Request.Context(), redisClient, []string{key},
			config.Capacity,
			config.RefillRate,
			clock().UnixMilli(),
		).Int()
		if err != nil {
			logrus.WithError(err).WithField("key", key).Error("Failed to execute rate limiter Lua script")
			c.Next()
			return
		}

		if allowed == 0 {
			retryAfter := int(math.Ceil(1.0 / config.RefillRate))
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			apperror.Abort(c, apperror.RateLimited,
				fmt.Sprintf("Rate limit exceeded, retry in %d seconds", retryAfter))
			return
		}

		c.Next()
	}
}

// Build cache key for user rate limiting
func UserRateLimiterKey(userID int64) string {
	return fmt.Sprintf("rate_limiter:user:%d", userID)
}

func ClientRateLimiterKey(ip string) string {
	return "rate_limiter:ip:" + ip
}
