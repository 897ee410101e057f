package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"skyprice/internal/logger"
	"skyprice/internal/response"
)

const (
	RequestIDKey    = "request_id"
	RequestIDHeader = "X-Request-Id"
)

// RequestId tags every request with a uuid, exposed in the response header
// and in the gin context for logging.
func RequestId() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		c.Header(RequestIDHeader, requestID)
		c.Set(RequestIDKey, requestID)
		c.Next()
	}
}

// CORS admits requests without an Origin header and requests from an allowed
// origin. Preflights from allowed origins are answered with 204.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(strings.TrimSpace(o), "/")] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		if _, ok := allowed[origin]; !ok {
			logger.Log.Warn("Rejected cross-origin request",
				zap.String("origin", origin),
				zap.String("path", c.Request.URL.Path),
				zap.String(RequestIDKey, c.GetString(RequestIDKey)),
			)
			_ = c.Error(response.ErrOriginRejected)
			c.Abort()
			return
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Vary", "Origin")
		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
			c.Header("Access-Control-Allow-Headers", "authorization, origin, content-type, accept, x-api-key")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
