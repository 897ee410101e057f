package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"skyprice/internal/logger"
	"skyprice/internal/response"
)

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit rejects clients over their per-IP budget with 429. Limiter
// failures let the request through.
func RateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		allowed, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.Log.Warn("Rate limiter unavailable",
				zap.String(RequestIDKey, c.GetString(RequestIDKey)),
				zap.Error(err),
			)
			c.Next()
			return
		}
		if !allowed {
			response.Fail(c, http.StatusTooManyRequests, response.MsgTooManyRequests)
			return
		}
		c.Next()
	}
}
