package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-filebot-backend/internal/http/middleware"
	"github.com/tbourn/go-filebot-backend/internal/services"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go)
	Code string `json:"code" example:"not_found"`
	// Human-readable message
	Message string `json:"message" example:"broadcast not found"`
}

// serviceError is the HTTP rendering of a service sentinel.
type serviceError struct {
	target error
	status int
	code   string
}

// serviceErrors lists the sentinels that are client-visible. Anything else
// is answered with 500 and the caller's fallback code.
var serviceErrors = []serviceError{
	{services.ErrBroadcastNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrChannelNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrUserNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrDuplicateChannel, http.StatusConflict, ErrCodeConflict},
	{services.ErrInvalidBroadcast, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrInvalidStatus, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrInvalidChannel, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrInvalidLocation, http.StatusBadRequest, ErrCodeBadRequest},
}

// fail aborts the request with an ErrorResponse. 5xx responses are logged
// on the request logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router answer with the same envelope (404/405 fallbacks).
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr renders err through serviceErrors, falling back to 500 with
// fallback as the code.
func failErr(c *gin.Context, err error, fallback string) {
	for _, se := range serviceErrors {
		if errors.Is(err, se.target) {
			fail(c, se.status, se.code, err.Error())
			return
		}
	}
	fail(c, http.StatusInternalServerError, fallback, err.Error())
}

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }
