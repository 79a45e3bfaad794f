package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/harryheman/slack-clone/internal/redis"
	"github.com/labstack/echo/v4"
)

// RateLimitMiddleware counts requests per user (or per IP before
// authentication) in a fixed window shared by every route in bucket. It sets
// the standard rate limit headers. With no Redis client, or when Redis
// fails, requests pass through.
func RateLimitMiddleware(redisClient *redis.Client, bucket string, limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if redisClient == nil {
			return next
		}
		return func(c echo.Context) error {
			key := "rl:" + bucket + ":ip:" + c.RealIP()
			if uid, ok := c.Get("user_id").(int64); ok {
				key = "rl:" + bucket + ":user:" + strconv.FormatInt(uid, 10)
			}

			allowed, count, ttlMs, err := redisClient.CheckRateLimit(c.Request().Context(), key, limit, window)
			if err != nil {
				slog.Warn("rate limit check failed, allowing request", "key", key, "error", err)
				return next(c)
			}

			remaining := max(int64(limit)-count, 0)
			resetAt := time.Now().Add(time.Duration(ttlMs) * time.Millisecond).Unix()

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

			if !allowed {
				h.Set("Retry-After", strconv.FormatInt((ttlMs+999)/1000, 10))
				return Error(c, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests, please try again later")
			}

			return next(c)
		}
	}
}
