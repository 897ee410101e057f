package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"skyprice/internal/logger"
)

// Logger writes one access log entry per request.
func Logger(c *gin.Context) {
	start := time.Now()
	c.Next()

	fields := []zap.Field{
		zap.String(RequestIDKey, c.GetString(RequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("route", routeLabel(c)),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("latency", time.Since(start)),
		zap.String("client_ip", c.ClientIP()),
	}
	if c.Writer.Status() >= 500 {
		logger.Log.Error("Request failed", fields...)
		return
	}
	logger.Log.Info("Request completed", fields...)
}
