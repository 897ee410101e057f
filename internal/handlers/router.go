package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"skyprice/internal/middleware"
	"skyprice/internal/response"
)

// healthTimestampLayout matches ISO-8601 with milliseconds in UTC.
const healthTimestampLayout = "2006-01-02T15:04:05.000Z07:00"

type RouterOptions struct {
	Service        AlertService
	Limiter        middleware.Limiter
	AllowedOrigins []string
}

// NewRouter wires the middleware chain and the alert routes.
func NewRouter(opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.Recovery(),
		middleware.RequestId(),
		middleware.Logger,
		middleware.Metrics(),
		middleware.ErrorHandler(),
		middleware.CORS(opts.AllowedOrigins),
	)

	h := NewAlertHandler(opts.Service)
	v1 := r.Group("/v1/alerts", middleware.RateLimit(opts.Limiter))
	{
		v1.POST("/create", h.CreateAlert)
		v1.POST("/update", h.UpdateAlertPrice)
		v1.GET("", h.GetAlerts)
		v1.PATCH("/:id", h.EditAlert)
		v1.DELETE("/:id", h.DeleteAlert)
	}

	r.GET("/health", Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.MsgRouteNotFound)
	})
	return r
}

// Health handles GET /health.
func Health(c *gin.Context) {
	response.OK(c, http.StatusOK, gin.H{
		"message":   "API is running",
		"timestamp": time.Now().UTC().Format(healthTimestampLayout),
	})
}
