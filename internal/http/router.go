// Package httpapi wires the Gin engine: cross-cutting middleware, the
// Discord interaction webhook, the scheduled triggers, and the versioned
// reflection API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/daily-reflections-bot/docs"
	"github.com/tbourn/daily-reflections-bot/internal/config"
	"github.com/tbourn/daily-reflections-bot/internal/discord"
	"github.com/tbourn/daily-reflections-bot/internal/http/handlers"
	"github.com/tbourn/daily-reflections-bot/internal/http/middleware"
	"github.com/tbourn/daily-reflections-bot/internal/repo"
)

// Services are the dependencies behind the routes. DB backs the idempotency
// lookup; a nil Backfill leaves POST /backfill answering 503.
type Services struct {
	DB          *gorm.DB
	Reflections handlers.ReflectionService
	Delivery    handlers.DeliveryService
	Discord     handlers.InteractionClient
	Backfill    handlers.BackfillRunner
}

var corsMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}

var corsHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey}

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with token scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per IP and route, bypass on replay)
//  9. CORS, security headers, gzip
func RegisterRoutes(r *gin.Engine, svc Services, cfg config.Config) error {
	var pub []byte
	if cfg.Discord.PublicKey != "" {
		key, err := discord.ParsePublicKey(cfg.Discord.PublicKey)
		if err != nil {
			return err
		}
		pub = key
	}

	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, deliveryLookup(svc.DB)))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByRoute())
	r.Use(rl.Handler())

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
		Expose:       []string{"ETag", "Retry-After"},
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/discord/"})))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(handlers.Deps{
		Reflections:    svc.Reflections,
		Delivery:       svc.Delivery,
		Discord:        svc.Discord,
		Backfill:       svc.Backfill,
		PublicKey:      pub,
		ScheduleHeader: cfg.Schedule.Header,
		ScheduleValue:  cfg.Schedule.HeaderValue,
	})
	bearer := middleware.BearerAuth(cfg.Schedule.BotToken)

	// Platform webhook
	r.POST("/discord/interactions", h.Interactions)

	// Scheduled triggers
	sched := r.Group("/scheduled", bearer)
	{
		sched.POST("/deliver", h.ScheduledDeliver)
		sched.GET("/reflection", h.ScheduledReflection)
	}

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/reflections", h.ListReflections)
		api.GET("/reflections/:date", h.GetReflection)

		admin := api.Group("", bearer)
		admin.POST("/reflections", h.CreateReflection)
		admin.PUT("/reflections/:date", h.UpdateReflection)
		admin.DELETE("/reflections/:date", h.DeleteReflection)
		admin.POST("/backfill", h.StartBackfill)
		admin.GET("/deliveries", h.ListDeliveries)
	}
	return nil
}

// deliveryLookup reports whether an unexpired delivery run carries key.
func deliveryLookup(db *gorm.DB) middleware.IdempotencyLookup {
	if db == nil {
		return nil
	}
	return func(ctx context.Context, key string, now time.Time) (bool, error) {
		_, err := repo.GetDeliveryRunByKey(ctx, db, key, now)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, repo.ErrNotFound):
			return false, nil
		default:
			return false, err
		}
	}
}

// corsMiddleware allows every origin when allowed is empty, otherwise only
// the listed ones. Credentials are never allowed.
func corsMiddleware(allowed []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:  corsMethods,
		AllowHeaders:  corsHeaders,
		ExposeHeaders: []string{"X-Request-ID", "ETag", "Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(allowed) == 0 {
		base.AllowAllOrigins = true
		// ACAO is forced even without an Origin header so health checks see it.
		force := func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		}
		return []gin.HandlerFunc{force, cors.New(base)}
	}

	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	echo := func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, hit := set[origin]; hit {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				c.Writer.Header().Add("Vary", "Origin")
			}
		}
		c.Next()
	}
	base.AllowOrigins = allowed
	return []gin.HandlerFunc{echo, cors.New(base)}
}

// limitBody caps request bodies at maxBytes; larger bodies fail on read.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
