package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RateLimiter applies a sliding-window limit to message sends, keyed by the
// authenticated actor. With no redis client configured it is a pass-through.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	logger zerolog.Logger
}

// NewRateLimiter constructs a RateLimiter. client may be nil.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window, logger: logger}
}

// LimitSends is gin middleware bounding how many sends each actor may
// make per window.
func (rl *RateLimiter) LimitSends() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.client == nil {
			c.Next()
			return
		}

		actorID := c.GetString(CtxActorID)
		if actorID == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := fmt.Sprintf("ratelimit:send:%s", actorID)
		now := time.Now().UnixNano()
		windowStart := now - rl.window.Nanoseconds()

		pipe := rl.client.Pipeline()
		pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart))
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
		countCmd := pipe.ZCard(ctx, key)
		pipe.Expire(ctx, key, rl.window)
		if _, err := pipe.Exec(ctx); err != nil {
			// Fail open: a broken limiter must not block messaging.
			rl.logger.Warn().Err(err).Msg("rate limiter unavailable")
			c.Next()
			return
		}

		if countCmd.Val() > int64(rl.limit) {
			c.Header("Retry-After", fmt.Sprintf("%d", int(rl.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many messages, slow down"})
			return
		}
		c.Next()
	}
}
