// Package httpkit provides HTTP response utilities.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"net/http"

	"franchise_ops_backend/platform/apperr"
	"franchise_ops_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// OK sends a 200 response wrapping the payload in the success envelope.
func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: payload})
}

// Created sends a 201 response wrapping the payload in the success envelope.
func Created(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{Success: true, Data: payload})
}

// Error sends an error response with the given status code and message.
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Success: false, Error: message})
}

// HandleError maps domain errors to HTTP responses. Typed *apperr.Error values
// carry their own status; anything else is an unhandled failure, logged with
// the underlying error and surfaced as a generic 500 so callers never see
// storage internals.
func HandleError(c *gin.Context, log *logger.Logger, err error) bool {
	if err == nil {
		return false
	}

	if domainErr, ok := err.(*apperr.Error); ok && domainErr.Kind != apperr.KindInternal {
		c.JSON(domainErr.HTTPStatus(), ErrorResponse{Success: false, Error: domainErr.Message})
		return true
	}

	log.Error("request failed",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"error", err,
	)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Success: false, Error: "internal server error"})
	return true
}
