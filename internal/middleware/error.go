package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

// RetryAfterSeconds is advertised when no room is free.
const RetryAfterSeconds = 30

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Status  string            `json:"status"`
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
	TraceID string            `json:"trace_id,omitempty"`
}

// ErrorHandler renders the last error pushed with c.Error. Handlers never
// write error bodies themselves.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		traceID := c.GetString(ContextRequestID)
		lastErr := c.Errors.Last().Err
		status, resp := renderError(lastErr)
		resp.TraceID = traceID

		event := log.Warn()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Err(lastErr).
			Str("request_id", traceID).
			Str("path", c.Request.URL.Path).
			Str("method", c.Request.Method).
			Int("status", status).
			Msg("Request error")

		if errors.Is(lastErr, apperrors.ErrNoRoomAvailable) {
			c.Header("Retry-After", strconv.Itoa(RetryAfterSeconds))
		}
		c.AbortWithStatusJSON(status, resp)
	}
}

func renderError(err error) (int, ErrorResponse) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest, ErrorResponse{
			Status:  "error",
			Code:    http.StatusBadRequest,
			Message: "validation failed",
			Errors:  validationErrors(verrs),
		}
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status := appErr.StatusCode()
		msg := appErr.Message
		if status >= http.StatusInternalServerError && !errors.Is(err, apperrors.ErrNoRoomAvailable) {
			// storage and internal details stay in the log
			msg = http.StatusText(status)
		}
		return status, ErrorResponse{Status: "error", Code: status, Message: msg}
	}

	return http.StatusInternalServerError, ErrorResponse{
		Status:  "error",
		Code:    http.StatusInternalServerError,
		Message: http.StatusText(http.StatusInternalServerError),
	}
}
