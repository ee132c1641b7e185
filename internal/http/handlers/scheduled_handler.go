// Scheduled triggers.
//
// POST /scheduled/deliver runs the daily fan-out and is what a platform cron
// or the worker calls. GET /scheduled/reflection is the bearer-protected
// health probe: it fetches today's reading from the source and returns the
// formatted card without posting it.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/daily-reflections-bot/internal/dates"
	"github.com/tbourn/daily-reflections-bot/internal/discord"
	"github.com/tbourn/daily-reflections-bot/internal/http/middleware"
)

// DeliverResponse is returned when at least one channel received the card.
type DeliverResponse struct {
	Message   string                   `json:"message" example:"Daily reflection posted successfully to Discord channels"`
	RunID     string                   `json:"run_id,omitempty"`
	Replayed  bool                     `json:"replayed,omitempty"`
	Results   []discord.DeliveryResult `json:"results"`
	Timestamp string                   `json:"timestamp" example:"2024-10-14T12:00:00.000Z"`
}

// DeliverFailure is returned when the run failed. Details never carry a
// stack trace.
type DeliverFailure struct {
	Error     string                   `json:"error" example:"Failed to post daily reflection to all Discord channels"`
	Details   string                   `json:"details"`
	Results   []discord.DeliveryResult `json:"results,omitempty"`
	Timestamp string                   `json:"timestamp"`
}

// ReflectionProbeResponse carries the formatted card of the probe.
type ReflectionProbeResponse struct {
	Message    string        `json:"message" example:"Successfully fetched reflection"`
	Reflection discord.Embed `json:"reflection"`
}

func (h *Handlers) timestamp() string {
	return h.now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// ScheduledDeliver godoc
// @ID          scheduledDeliver
// @Summary     Post the daily reflection to every channel
// @Description Resolves the day's reflection and posts it to every configured webhook after a random jitter. Succeeds when at least one channel accepted it. A repeated Idempotency-Key returns the recorded run without posting again.
// @Tags        Scheduled
// @Produce     json
//
// @Param       Authorization    header  string  true   "Bearer token"
// @Param       Idempotency-Key  header  string  false  "Replays a recorded run"
// @Param       date             query   string  false  "Date to post instead of today"  example(01-05)
//
// @Success     200  {object}  handlers.DeliverResponse
// @Failure     400  {object}  handlers.DeliverFailure
// @Failure     401  {object}  map[string]string
// @Failure     500  {object}  handlers.DeliverFailure
// @Router      /scheduled/deliver [post]
func (h *Handlers) ScheduledDeliver(c *gin.Context) {
	lg := middleware.LoggerFrom(c)
	ctx := c.Request.Context()

	if h.schedHeader != "" && c.GetHeader(h.schedHeader) == h.schedValue {
		lg.Info().Str("at", h.timestamp()).Msg("cron trigger, running scheduled reflection")
	}

	var day *dates.Canonical
	if raw := c.Query("date"); raw != "" {
		d, err := dates.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, DeliverFailure{
				Error:     "Invalid date",
				Details:   causeText(err),
				Timestamp: h.timestamp(),
			})
			return
		}
		day = &d
	}

	key, _ := middleware.GetIdempotencyKey(c)
	if middleware.IsReplay(c) {
		lg.Info().Str("key", key).Msg("idempotency key seen, replaying recorded run")
	}
	report, err := h.delivery.DeliverDaily(ctx, day, key, discord.NewTracker(*lg))
	if err != nil {
		var results []discord.DeliveryResult
		if report != nil {
			results = report.Results
		}
		h.deliverFailed(c, err, results)
		return
	}

	ok(c, http.StatusOK, DeliverResponse{
		Message:   "Daily reflection posted successfully to Discord channels",
		RunID:     report.RunID,
		Replayed:  report.Replayed,
		Results:   report.Results,
		Timestamp: h.timestamp(),
	})
}

func (h *Handlers) deliverFailed(c *gin.Context, err error, results []discord.DeliveryResult) {
	middleware.LoggerFrom(c).Error().Err(err).Msg("error posting daily reflection")
	c.AbortWithStatusJSON(http.StatusInternalServerError, DeliverFailure{
		Error:     "Failed to post daily reflection to all Discord channels",
		Details:   causeText(err),
		Results:   results,
		Timestamp: h.timestamp(),
	})
}

// ScheduledReflection godoc
// @ID          scheduledReflection
// @Summary     Fetch and format today's reflection
// @Description Fetches today's reading from the source, refreshes the cache, and returns the formatted card. Used as a keep-alive and health probe.
// @Tags        Scheduled
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer token"
//
// @Success     200  {object}  handlers.ReflectionProbeResponse
// @Failure     401  {object}  map[string]string
// @Failure     500  {object}  map[string]string
// @Router      /scheduled/reflection [get]
func (h *Handlers) ScheduledReflection(c *gin.Context) {
	lg := middleware.LoggerFrom(c)
	lg.Info().Str("at", h.timestamp()).Msg("scheduled probe ran")

	fail500 := func(err error) {
		lg.Error().Err(err).Msg("scheduled probe failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to process scheduled bot function",
			"details": causeText(err),
		})
	}

	rec, err := h.refSvc.Refresh(c.Request.Context(), nil)
	if err != nil {
		fail500(err)
		return
	}
	entry, err := discord.FromExternal(rec)
	if err != nil {
		fail500(err)
		return
	}
	ok(c, http.StatusOK, ReflectionProbeResponse{
		Message:    "Successfully fetched reflection",
		Reflection: discord.Format(entry),
	})
}
