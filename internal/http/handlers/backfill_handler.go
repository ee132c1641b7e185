package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/daily-reflections-bot/internal/http/middleware"
	"github.com/tbourn/daily-reflections-bot/internal/services"
)

// BackfillAccepted is returned once a backfill has been handed off.
type BackfillAccepted struct {
	Message string `json:"message" example:"backfill started"`
	TaskID  string `json:"task_id,omitempty" example:"backfill:3f0c"`
}

// StartBackfill godoc
// @ID          startBackfill
// @Summary     Backfill the reflection cache
// @Description Starts importing every calendar day from the source. Returns immediately; progress is logged.
// @Tags        Admin
// @Produce     json
// @Param       Authorization  header  string  true  "Bearer token"
// @Success     202  {object} handlers.BackfillAccepted
// @Failure     401  {object} map[string]string
// @Failure     409  {object} handlers.ErrorResponse "Already running"
// @Failure     503  {object} handlers.ErrorResponse "Backfill unavailable"
// @Router      /backfill [post]
func (h *Handlers) StartBackfill(c *gin.Context) {
	if h.backfill == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "backfill is not configured")
		return
	}
	id, err := h.backfill.StartBackfill(c.Request.Context())
	switch {
	case errors.Is(err, services.ErrBackfillRunning):
		fail(c, http.StatusConflict, ErrCodeConflict, "a backfill is already running")
		return
	case err != nil:
		middleware.LoggerFrom(c).Error().Err(err).Msg("backfill not started")
		fail(c, http.StatusServiceUnavailable, ErrCodeBackfillFailed, "backfill could not be started")
		return
	}
	middleware.LoggerFrom(c).Info().Str("task_id", id).Msg("backfill started")
	ok(c, http.StatusAccepted, BackfillAccepted{Message: "backfill started", TaskID: id})
}
