package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sumire/recipebox/internal/domain"
)

// Envelope wraps every error response. Successful responses are plain JSON.
type Envelope struct {
	Error *APIError `json:"error"`
}

// APIError represents an error in the API response.
type APIError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a field-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// MessageResponse is the body of endpoints that only acknowledge an action.
type MessageResponse struct {
	Message string `json:"message"`
}

// HTTPErrorHandler is the global error handler for echo.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, apiErr := mapError(err)
	if c.Request().Method == http.MethodHead {
		if noContentErr := c.NoContent(status); noContentErr != nil {
			slog.Error("failed to send error response", "error", noContentErr)
		}
		return
	}
	if jsonErr := c.JSON(status, Envelope{Error: &apiErr}); jsonErr != nil {
		slog.Error("failed to send error response", "error", jsonErr)
	}
}

// statusOf returns the HTTP status err is rendered with.
func statusOf(err error) int {
	status, _ := mapError(err)
	return status
}

func mapError(err error) (int, APIError) {
	// echo's own HTTP errors (404, 405, 429, gate rejections)
	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		msg, _ := echoErr.Message.(string)
		if msg == "" {
			msg = http.StatusText(echoErr.Code)
		}
		return echoErr.Code, APIError{
			Code:    statusCode(echoErr.Code),
			Message: msg,
		}
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, APIError{
			Code:    "validation_error",
			Message: "Validation failed",
			Details: []FieldError{
				{Field: validationErr.Field, Message: validationErr.Message},
			},
		}
	}

	switch {
	case errors.Is(err, domain.ErrInternal):
		return internalError(err)
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: messageOr(err, "The requested resource was not found"),
		}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, APIError{
			Code:    "unauthorized",
			Message: messageOr(err, "Authentication is required"),
		}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, APIError{
			Code:    "forbidden",
			Message: messageOr(err, "You do not have permission to perform this action"),
		}
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, APIError{
			Code:    "invalid_input",
			Message: messageOr(err, "The request body is invalid"),
		}
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, APIError{
			Code:    "conflict",
			Message: messageOr(err, "The resource already exists or conflicts with current state"),
		}
	default:
		return internalError(err)
	}
}

func internalError(err error) (int, APIError) {
	slog.Error("unhandled error", "error", err)
	return http.StatusInternalServerError, APIError{
		Code:    "internal_error",
		Message: "An unexpected error occurred",
	}
}

// messageOr returns the client message carried by a *domain.Error, or def.
func messageOr(err error, def string) string {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		return domainErr.Message
	}
	return def
}

func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "error"
	}
	return strings.ReplaceAll(strings.ToLower(text), " ", "_")
}
