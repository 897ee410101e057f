// Package response writes the JSON envelopes of the HTTP API and maps errors
// onto status codes.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"skyprice/internal/database"
	"skyprice/internal/service"
	"skyprice/internal/validators"
)

var (
	ErrInvalidJSON    = errors.New("invalid JSON body")
	ErrOriginRejected = errors.New("origin not allowed by CORS policy")
)

const (
	MsgNotFound        = "Alert not found"
	MsgDatabase        = "Database error occurred"
	MsgInternal        = "Internal server error"
	MsgInvalidJSON     = "Invalid JSON body"
	MsgCORS            = "CORS policy violation"
	MsgTooManyRequests = "Too many requests"
	MsgRouteNotFound   = "Route not found"
)

// Classify returns the status and client-facing message for err. Store and
// unknown failures collapse to generic messages.
func Classify(err error) (int, string) {
	var verr *validators.ValidationError
	var serr *database.StoreError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Reason
	case errors.Is(err, ErrInvalidJSON):
		return http.StatusBadRequest, MsgInvalidJSON
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, MsgNotFound
	case errors.Is(err, ErrOriginRejected):
		return http.StatusForbidden, MsgCORS
	case errors.As(err, &serr):
		return http.StatusInternalServerError, MsgDatabase
	default:
		return http.StatusInternalServerError, MsgInternal
	}
}

// OK writes {"success": true, ...body}.
func OK(c *gin.Context, status int, body gin.H) {
	out := gin.H{"success": true}
	for k, v := range body {
		out[k] = v
	}
	c.JSON(status, out)
}

// Fail aborts the request with {"success": false, "error": msg}.
func Fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

// Error aborts the request with the response Classify picks for err.
func Error(c *gin.Context, err error) {
	status, msg := Classify(err)
	Fail(c, status, msg)
}
