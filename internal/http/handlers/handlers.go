package handlers

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/daily-reflections-bot/internal/dates"
	"github.com/tbourn/daily-reflections-bot/internal/discord"
	"github.com/tbourn/daily-reflections-bot/internal/domain"
	"github.com/tbourn/daily-reflections-bot/internal/services"
	"github.com/tbourn/daily-reflections-bot/internal/source"
	"github.com/tbourn/daily-reflections-bot/internal/utils"
)

//
// Service contracts (context-aware)
//

// ReflectionService resolves and manages cached reflections.
type ReflectionService interface {
	Refresh(ctx context.Context, d *dates.Canonical) (*source.Record, error)
	Get(ctx context.Context, d dates.Canonical) (*domain.Reflection, error)
	Create(ctx context.Context, r *domain.Reflection) (bool, error)
	Update(ctx context.Context, d dates.Canonical, r *domain.Reflection) error
	Delete(ctx context.Context, d dates.Canonical) error
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Reflection, int64, error)
}

// DeliveryService formats the day's card and runs the fan-out.
type DeliveryService interface {
	Embed(ctx context.Context, d *dates.Canonical) (discord.Embed, error)
	DeliverDaily(ctx context.Context, d *dates.Canonical, key string, tr *discord.Tracker) (*services.DeliveryReport, error)
	ListRuns(ctx context.Context, limit int) ([]domain.DeliveryRun, error)
}

// InteractionClient answers an interaction through the platform's REST API.
type InteractionClient interface {
	SendDeferred(ctx context.Context, interactionID, token string) error
	SendFollowUp(ctx context.Context, token string, payload discord.WebhookPayload) error
}

// BackfillRunner starts a full cache backfill without waiting for it. The
// returned ID identifies the queued task.
type BackfillRunner interface {
	StartBackfill(ctx context.Context) (string, error)
}

//
// Handler wiring
//

// Deps bundles everything the handlers need. Nil services disable the
// routes that depend on them.
type Deps struct {
	Reflections ReflectionService
	Delivery    DeliveryService
	Discord     InteractionClient
	Backfill    BackfillRunner

	// PublicKey verifies inbound interactions.
	PublicKey ed25519.PublicKey
	// ScheduleHeader and ScheduleValue identify a platform cron trigger.
	ScheduleHeader string
	ScheduleValue  string
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	refSvc    ReflectionService
	delivery  DeliveryService
	discord   InteractionClient
	backfill  BackfillRunner
	publicKey ed25519.PublicKey

	schedHeader string
	schedValue  string

	now func() time.Time
}

// New constructs Handlers from d.
func New(d Deps) *Handlers {
	return &Handlers{
		refSvc:      d.Reflections,
		delivery:    d.Delivery,
		discord:     d.Discord,
		backfill:    d.Backfill,
		publicKey:   d.PublicKey,
		schedHeader: d.ScheduleHeader,
		schedValue:  d.ScheduleValue,
		now:         time.Now,
	}
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

//
// Helpers
//

// clampPagination reads page and page_size, defaulting to 1 and 20 and
// capping page_size at 100.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}
