package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-booking/internal/config"
	"github.com/gocomet/ride-booking/pkg/cache"
	"github.com/gocomet/ride-booking/pkg/errors"
	"github.com/gocomet/ride-booking/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RateLimit caps requests per client IP over a fixed window backed by Redis.
// The limiter is advisory: Redis errors are logged and the request proceeds.
func RateLimit(client *redis.Client, cfg config.RateLimitConfig, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("ratelimit:%s", c.ClientIP())

		count, err := cache.CountRequest(c.Request.Context(), client, key, cfg.Window)
		if err != nil {
			log.Warn("rate limit check failed, allowing request",
				logger.String("client_ip", c.ClientIP()),
				logger.Err(err))
			c.Next()
			return
		}

		if count > int64(cfg.MaxRequests) {
			abort(c, errors.NewAppError(
				"RATE_LIMITED", "Too many requests, please try again later",
				http.StatusTooManyRequests, nil))
			return
		}

		c.Next()
	}
}
