package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aura-events/ticketing/internal/metrics"
	"github.com/aura-events/ticketing/pkg/response"
)

// RateLimiter counts requests per key in fixed windows stored in Redis.
type RateLimiter struct {
	client  *redis.Client
	logger  *zap.Logger
	prefix  string
	timeout time.Duration
}

// NewRateLimiter creates a Redis-backed limiter.
func NewRateLimiter(client *redis.Client, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{client: client, logger: logger, prefix: "ratelimit:", timeout: 250 * time.Millisecond}
}

// Allow increments the counter for key and reports whether it is within limit, plus the time until the
// window resets. Redis errors allow the request.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration) {
	if limit <= 0 {
		return true, 0
	}
	ctx, cancel := context.WithTimeout(ctx, rl.timeout)
	defer cancel()

	redisKey := rl.prefix + key
	count, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		rl.logger.Error("redis rate limiter error", zap.String("op", "incr"), zap.Error(err))
		return true, 0
	}
	if count == 1 {
		if err := rl.client.Expire(ctx, redisKey, window).Err(); err != nil {
			rl.logger.Error("redis rate limiter error", zap.String("op", "expire"), zap.Error(err))
		}
	}
	ttl, err := rl.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		ttl = window
	}
	return int(count) <= limit, ttl
}

// RateLimit caps requests to route at perMinute per client IP. A nil limiter disables it.
func RateLimit(rl *RateLimiter, route string, perMinute int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil || perMinute <= 0 {
			c.Next()
			return
		}
		allowed, retryAfter := rl.Allow(c.Request.Context(), route+":"+c.ClientIP(), perMinute, time.Minute)
		if !allowed {
			metrics.RateLimited(route)
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			response.Abort(c, http.StatusTooManyRequests, "too many requests")
			return
		}
		c.Next()
	}
}
