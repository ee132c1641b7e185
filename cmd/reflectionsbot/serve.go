package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/daily-reflections-bot/internal/config"
	"github.com/tbourn/daily-reflections-bot/internal/discord"
	httpapi "github.com/tbourn/daily-reflections-bot/internal/http"
	"github.com/tbourn/daily-reflections-bot/internal/http/handlers"
	"github.com/tbourn/daily-reflections-bot/internal/services"
	"github.com/tbourn/daily-reflections-bot/internal/worker"
)

func serveCmd(cfgFn func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfgFn())
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	a, err := newApp(ctx, cfg, "serve")
	if err != nil {
		return err
	}

	defer a.close(context.Background())

	var runner handlers.BackfillRunner
	local := worker.NewLocalRunner(a.backfill)
	defer local.Wait()
	client, err := worker.NewClient(cfg.Worker.RedisURL)
	switch {
	case errors.Is(err, services.ErrWorkerDisabled):
		log.Info().Msg("REDIS_URL not set, backfills run in-process")
		runner = local
	case err != nil:
		return err
	default:
		defer client.Close()
		runner = client
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	err = httpapi.RegisterRoutes(r, httpapi.Services{
		DB:          a.db,
		Reflections: a.reflections,
		Delivery:    a.delivery,
		Discord:     discord.NewClient(cfg.Discord.APIBase, cfg.Discord.ClientID, cfg.Discord.Timeout),
		Backfill:    runner,
	}, cfg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout + cfg.Schedule.JitterMax,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", Version).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	log.Info().Msg("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	return nil
}
