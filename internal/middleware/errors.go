package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"skyprice/internal/database"
	"skyprice/internal/logger"
	"skyprice/internal/response"
)

// ErrorHandler turns the last error a handler recorded with c.Error into the
// JSON failure envelope. Internal details are logged, never returned.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status, msg := response.Classify(err)
		if status >= http.StatusInternalServerError {
			fields := []zap.Field{
				zap.String(RequestIDKey, c.GetString(RequestIDKey)),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			}
			var serr *database.StoreError
			if errors.As(err, &serr) {
				fields = append(fields, zap.String("op", serr.Op))
			}
			logger.Log.Error("Request error", fields...)
		}
		response.Fail(c, status, msg)
	}
}

// Recovery converts a panic into a generic 500.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Log.Error("Recovered from panic",
			zap.String(RequestIDKey, c.GetString(RequestIDKey)),
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered),
		)
		response.Fail(c, http.StatusInternalServerError, response.MsgInternal)
	})
}
