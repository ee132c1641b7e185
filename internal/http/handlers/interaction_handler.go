// Interaction webhook.
//
// POST /discord/interactions is called by the platform for every slash
// command. The request is verified against the application's Ed25519 key;
// PINGs are answered inline and commands are acknowledged with a deferred
// response, resolved, and answered with a follow-up message.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/daily-reflections-bot/internal/apperr"
	"github.com/tbourn/daily-reflections-bot/internal/discord"
	"github.com/tbourn/daily-reflections-bot/internal/http/middleware"
)

// Follow-up texts.
const (
	msgNotRegistered   = "Command not registered."
	msgUnknownCommand  = "Unknown command."
	msgReflectionError = "An error occurred while fetching the daily reflection."
)

// maxInteractionBody caps the signed payload read for verification.
const maxInteractionBody = 64 << 10

// Interactions godoc
// @ID          discordInteractions
// @Summary     Discord interaction webhook
// @Description Verifies the Ed25519 signature, answers PING with PONG, and handles slash commands through a deferred response and a follow-up message.
// @Tags        Discord
// @Accept      json
// @Produce     json
//
// @Param       X-Signature-Ed25519    header  string  true  "Hex signature of timestamp+body"
// @Param       X-Signature-Timestamp  header  string  true  "Signature timestamp"
//
// @Success     200  {object}  discord.InteractionResponse  "PONG for type 1; empty body for commands"
// @Failure     400  {object}  map[string]string  "Unknown request type"
// @Failure     401  {object}  map[string]string  "Invalid request signature"
// @Failure     500  {object}  map[string]string  "Internal server error"
// @Router      /discord/interactions [post]
func (h *Handlers) Interactions(c *gin.Context) {
	lg := middleware.LoggerFrom(c)
	tr := discord.NewTracker(*lg)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxInteractionBody))
	if err != nil {
		tr.Fail(err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if !discord.Verify(h.publicKey, c.GetHeader(discord.HeaderSignature), c.GetHeader(discord.HeaderTimestamp), body) {
		tr.Fail(nil)
		lg.Warn().Msg("interaction signature rejected")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid request signature"})
		return
	}
	tr.Advance(discord.StateVerified)

	var in discord.Interaction
	if err := json.Unmarshal(body, &in); err != nil {
		tr.Fail(err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	switch in.Type {
	case discord.InteractionPing:
		middleware.CountInteraction("ping", "", false)
		tr.Advance(discord.StateCompleted)
		c.JSON(http.StatusOK, discord.InteractionResponse{Type: discord.ResponsePong})

	case discord.InteractionApplicationCommand:
		name := in.CommandName()
		middleware.CountInteraction("application_command", name, discord.IsRegistered(name))
		if err := h.answerCommand(c.Request.Context(), in, tr); err != nil {
			err = apperr.Wrap(err, apperr.KindExternalService, "handlers.Interactions")
			tr.Fail(err)
			lg.Error().Err(err).Str("command", name).Msg("interaction failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		tr.Advance(discord.StateCompleted)
		c.Status(http.StatusOK)

	default:
		tr.Fail(nil)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Unknown request type"})
	}
}

// answerCommand sends the deferred acknowledgement, builds the reply, and
// posts it as a follow-up. Only transport failures are returned; command
// failures become follow-up text.
func (h *Handlers) answerCommand(ctx context.Context, in discord.Interaction, tr *discord.Tracker) error {
	start := h.now()
	if err := h.discord.SendDeferred(ctx, in.ID, in.Token); err != nil {
		return err
	}
	tr.Advance(discord.StateDeferredAckSent)

	payload := h.commandReply(ctx, in.CommandName(), start, tr)

	tr.Advance(discord.StateDelivering)
	return h.discord.SendFollowUp(ctx, in.Token, payload)
}

func (h *Handlers) commandReply(ctx context.Context, name string, start time.Time, tr *discord.Tracker) discord.WebhookPayload {
	if !discord.IsRegistered(name) {
		return discord.WebhookPayload{Content: msgNotRegistered}
	}

	switch name {
	case discord.CommandPing:
		latency := h.now().Sub(start).Milliseconds()
		return discord.WebhookPayload{Content: fmt.Sprintf("Pong! Bot latency is %dms.", latency)}

	case discord.CommandReflections:
		tr.Advance(discord.StateResolving)
		embed, err := h.delivery.Embed(ctx, nil)
		if err != nil {
			log.Error().Err(err).Msg("reflection lookup for command failed")
			return discord.WebhookPayload{Content: msgReflectionError}
		}
		tr.Advance(discord.StateFormatting)
		return discord.WebhookPayload{Embeds: []discord.Embed{embed}}

	default:
		return discord.WebhookPayload{Content: msgUnknownCommand}
	}
}
