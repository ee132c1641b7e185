package main

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/daily-reflections-bot/internal/apperr"
	"github.com/tbourn/daily-reflections-bot/internal/config"
	"github.com/tbourn/daily-reflections-bot/internal/dates"
	"github.com/tbourn/daily-reflections-bot/internal/discord"
	"github.com/tbourn/daily-reflections-bot/internal/observability"
	"github.com/tbourn/daily-reflections-bot/internal/repo"
	"github.com/tbourn/daily-reflections-bot/internal/services"
	"github.com/tbourn/daily-reflections-bot/internal/source"
	"github.com/tbourn/daily-reflections-bot/internal/sysutil"
)

// app is the object graph shared by every command.
type app struct {
	cfg         config.Config
	db          *gorm.DB
	reflections *services.ReflectionService
	delivery    *services.DeliveryService
	backfill    *services.BackfillService
	shutdownOT  observability.Shutdown
}

func newApp(ctx context.Context, cfg config.Config, role string) (*app, error) {
	shutdown, err := observability.Setup(ctx, cfg.OTEL, role, Version)
	if err != nil {
		return nil, err
	}
	if err := sysutil.EnsureDBDir(cfg.DBPath); err != nil {
		return nil, err
	}
	db, err := repo.OpenSQLite(cfg.DBPath, repo.Options{Tracing: cfg.OTEL.Enabled, Quiet: cfg.LogLevel != "debug"})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindDatabase, "main.newApp: open")
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, apperr.Wrap(err, apperr.KindDatabase, "main.newApp: migrate")
	}

	src := source.NewClient(cfg.Source.BaseURL, cfg.Source.Timeout)
	refs := services.NewReflectionService(db, src, cfg.Schedule.Location)
	a := &app{
		cfg:         cfg,
		db:          db,
		reflections: refs,
		delivery: &services.DeliveryService{
			DB:        db,
			Resolver:  refs,
			Sender:    discord.NewFanout(cfg.Discord.Timeout),
			Targets:   cfg.Discord.WebhookURLs,
			RunTTL:    cfg.IdempotencyTTL,
			JitterMax: cfg.Schedule.JitterMax,
		},
		backfill:   services.NewBackfillService(db, src, cfg.Backfill.BatchSize, cfg.Backfill.Delay),
		shutdownOT: shutdown,
	}
	if len(cfg.Discord.WebhookURLs) == 0 {
		log.Warn().Str("prefix", cfg.Discord.WebhookPrefix).Msg("no webhook targets configured")
	}
	return a, nil
}

// close waits for pending cache writes, then releases the database and
// flushes traces.
func (a *app) close(ctx context.Context) {
	a.reflections.Wait()
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := a.shutdownOT(ctx); err != nil {
		log.Warn().Err(err).Msg("trace shutdown")
	}
}

// dayArg parses an optional positional date; no argument means today.
func dayArg(args []string) (*dates.Canonical, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return nil, nil
	}
	d, err := dates.Parse(strings.Join(args, " "))
	if err != nil {
		return nil, apperr.Wrap(services.ErrInvalidDate, apperr.KindValidation, "main.dayArg")
	}
	return &d, nil
}
