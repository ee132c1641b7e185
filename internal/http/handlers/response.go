package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/daily-reflections-bot/internal/apperr"
	"github.com/tbourn/daily-reflections-bot/internal/http/middleware"
)

// ErrorResponse is the error envelope of the /api routes.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"reflection not found"`
}

// fail aborts with an ErrorResponse. 5xx responses are logged through the
// request-scoped logger.
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

// Fail is the exported variant of fail for the router's NoRoute handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr maps a classified error to its status and code. Messages of
// error kinds that can carry internals are replaced by a generic text.
func failErr(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	code, msg := ErrCodeInternal, "internal error"

	switch kind {
	case apperr.KindValidation:
		code, msg = ErrCodeBadRequest, causeText(err)
	case apperr.KindNotFound:
		code, msg = ErrCodeNotFound, "reflection not found"
	case apperr.KindAuthentication:
		code, msg = ErrCodeUnauthorized, "unauthorized"
	case apperr.KindAuthorization:
		code, msg = ErrCodeForbidden, "forbidden"
	case apperr.KindNetwork, apperr.KindExternalService:
		code, msg = ErrCodeUpstream, "upstream service unavailable"
	case apperr.KindConfiguration, apperr.KindDatabase:
		code, msg = ErrCodeUnavailable, "service unavailable"
	}
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().Err(err).Str("kind", string(kind)).Msg("request failed")
	}
	fail(c, status, code, msg)
}

// causeText is the message of the innermost classified cause, without the
// op and kind prefix.
func causeText(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		if cause := ae.Unwrap(); cause != nil {
			return cause.Error()
		}
	}
	return err.Error()
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
