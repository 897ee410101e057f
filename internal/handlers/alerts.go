package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"skyprice/internal/logger"
	"skyprice/internal/models"
	"skyprice/internal/response"
	"skyprice/internal/service"
	"skyprice/internal/tracing"
	"skyprice/internal/validators"
)

// AlertService is what the HTTP layer needs from the alert service.
type AlertService interface {
	Create(ctx context.Context, req models.CreateAlertRequest) (string, error)
	UpdatePrice(ctx context.Context, req models.UpdatePriceRequest) (bool, error)
	Edit(ctx context.Context, id string, req models.EditAlertRequest) (*models.Alert, bool, error)
	ListByEmail(ctx context.Context, email string) ([]*models.Alert, error)
	Delete(ctx context.Context, id string) error
}

type AlertHandler struct {
	service AlertService
}

func NewAlertHandler(svc AlertService) *AlertHandler {
	return &AlertHandler{service: svc}
}

// CreateAlert handles POST /v1/alerts/create.
func (h *AlertHandler) CreateAlert(c *gin.Context) {
	ctx, span := otel.Tracer(tracing.TracerName).Start(c.Request.Context(), "CreateAlertHandler")
	defer span.End()

	var req models.CreateAlertRequest
	if err := bindBody(c, &req); err != nil {
		h.fail(c, span, "Failed to parse request body", err)
		return
	}

	id, err := h.service.Create(ctx, req)
	if err != nil {
		h.fail(c, span, "Failed to create alert", err)
		return
	}
	span.SetAttributes(attribute.String("alert.id", id))

	response.OK(c, http.StatusCreated, gin.H{"id": id})
}

// UpdateAlertPrice handles POST /v1/alerts/update.
func (h *AlertHandler) UpdateAlertPrice(c *gin.Context) {
	ctx, span := otel.Tracer(tracing.TracerName).Start(c.Request.Context(), "UpdateAlertPriceHandler")
	defer span.End()

	var req models.UpdatePriceRequest
	if err := bindBody(c, &req); err != nil {
		h.fail(c, span, "Failed to parse request body", err)
		return
	}

	updated, err := h.service.UpdatePrice(ctx, req)
	if err != nil {
		h.fail(c, span, "Failed to update alert price", err)
		return
	}

	response.OK(c, http.StatusOK, gin.H{"updated": updated})
}

// GetAlerts handles GET /v1/alerts?email=.
func (h *AlertHandler) GetAlerts(c *gin.Context) {
	ctx, span := otel.Tracer(tracing.TracerName).Start(c.Request.Context(), "GetAlertsHandler")
	defer span.End()

	alerts, err := h.service.ListByEmail(ctx, c.Query("email"))
	if err != nil {
		h.fail(c, span, "Failed to fetch alerts", err)
		return
	}

	response.OK(c, http.StatusOK, gin.H{"count": len(alerts), "data": alerts})
}

// EditAlert handles PATCH /v1/alerts/:id.
func (h *AlertHandler) EditAlert(c *gin.Context) {
	ctx, span := otel.Tracer(tracing.TracerName).Start(c.Request.Context(), "EditAlertHandler")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("alert.id", id))

	var req models.EditAlertRequest
	if err := bindBody(c, &req); err != nil {
		h.fail(c, span, "Failed to parse request body", err)
		return
	}

	alert, updated, err := h.service.Edit(ctx, id, req)
	if err != nil {
		h.fail(c, span, "Failed to edit alert", err)
		return
	}

	response.OK(c, http.StatusOK, gin.H{"updated": updated, "data": alert})
}

// DeleteAlert handles DELETE /v1/alerts/:id.
func (h *AlertHandler) DeleteAlert(c *gin.Context) {
	ctx, span := otel.Tracer(tracing.TracerName).Start(c.Request.Context(), "DeleteAlertHandler")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("alert.id", id))

	if err := h.service.Delete(ctx, id); err != nil {
		h.fail(c, span, "Failed to delete alert", err)
		return
	}

	response.OK(c, http.StatusOK, gin.H{"message": "Alert deleted successfully"})
}

// fail logs err with the trace id and hands it to the error middleware.
// Client mistakes are logged at warn level.
func (h *AlertHandler) fail(c *gin.Context, span trace.Span, msg string, err error) {
	traceID := span.SpanContext().TraceID().String()
	var verr *validators.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, response.ErrInvalidJSON), errors.Is(err, service.ErrNotFound):
		logger.Log.Warn(msg,
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		logger.Log.Error(msg,
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
}

// bindBody decodes a JSON object body into obj. An empty body decodes as {}.
func bindBody(c *gin.Context, obj any) error {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return response.ErrInvalidJSON
	}
	if len(body) == 0 {
		return nil
	}
	if err := binding.JSON.BindBody(body, obj); err != nil {
		return response.ErrInvalidJSON
	}
	return nil
}
