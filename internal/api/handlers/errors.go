package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/AnnixInvestments/annix-sub017/internal/repositories"
	"github.com/AnnixInvestments/annix-sub017/internal/services"
)

// ErrorResponse defines the structure of an error response
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// APIError represents an API error
type APIError struct {
	Message    string
	StatusCode int
	Code       string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Common API errors
var (
	ErrInvalidRequest = &APIError{Message: "Invalid request", StatusCode: http.StatusBadRequest, Code: "INVALID_REQUEST"}
	ErrNotFound       = &APIError{Message: "Resource not found", StatusCode: http.StatusNotFound, Code: "NOT_FOUND"}
	ErrInternalServer = &APIError{Message: "Internal server error", StatusCode: http.StatusInternalServerError, Code: "INTERNAL_ERROR"}
	ErrUnauthorized   = &APIError{Message: "Missing or invalid X-Supplier-ID header", StatusCode: http.StatusUnauthorized, Code: "UNAUTHORIZED"}
	ErrConflict       = &APIError{Message: "Resource state conflict", StatusCode: http.StatusConflict, Code: "CONFLICT"}
)

// NewValidationError creates a new validation error with a custom message
func NewValidationError(message string) *APIError {
	return &APIError{
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Code:       "VALIDATION_ERROR",
	}
}

// toAPIError maps service and repository errors onto the catalogue
func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, services.ErrBoqNotFound),
		errors.Is(err, services.ErrAccessNotFound),
		errors.Is(err, repositories.ErrNotFound):
		return &APIError{Message: errors.Cause(err).Error(), StatusCode: http.StatusNotFound, Code: "NOT_FOUND"}
	case errors.Is(err, services.ErrAccessTerminal):
		return &APIError{Message: errors.Cause(err).Error(), StatusCode: http.StatusConflict, Code: "CONFLICT"}
	case errors.Is(err, services.ErrInvalidQuote):
		return NewValidationError(err.Error())
	case errors.Is(err, services.ErrDeclineReasonRequired),
		errors.Is(err, services.ErrInvalidReminder),
		errors.Is(err, services.ErrNoLineItems):
		return NewValidationError(errors.Cause(err).Error())
	}
	return nil
}

// WriteError writes an error response and aborts the request
func WriteError(c *gin.Context, err error) {
	if apiErr := toAPIError(err); apiErr != nil {
		c.AbortWithStatusJSON(apiErr.StatusCode, ErrorResponse{
			Message: apiErr.Message,
			Code:    apiErr.Code,
		})
		return
	}

	log.Error().Err(err).Str("path", c.FullPath()).Msg("Unhandled error")
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Message: ErrInternalServer.Message,
		Code:    ErrInternalServer.Code,
	})
}
