package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/daily-reflections-bot/internal/config"
	"github.com/tbourn/daily-reflections-bot/internal/discord"
	"github.com/tbourn/daily-reflections-bot/internal/services"
	"github.com/tbourn/daily-reflections-bot/internal/worker"
)

func workerCmd(cfgFn func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process background tasks and run the delivery schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := cfgFn()
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, "worker")
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			srv, err := worker.NewServer(cfg.Worker, cfg.Schedule.Location, worker.Deps{
				Delivery: a.delivery,
				Backfill: a.backfill,
				Pinger:   worker.NewPinger(cfg.Worker.AppURL, cfg.Schedule.BotToken, cfg.Source.Timeout),
				Logger:   log.Logger,
			})
			if err != nil {
				return err
			}
			log.Info().
				Str("delivery_schedule", cfg.Worker.DeliverySchedule).
				Str("ping_schedule", cfg.Worker.PingSchedule).
				Str("timezone", cfg.Schedule.Timezone).
				Msg("worker configured")
			return srv.Run(ctx)
		},
	}
}

func backfillCmd(cfgFn func() config.Config) *cobra.Command {
	var enqueue bool
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Import every calendar day from the source into the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := cfgFn()
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if enqueue {
				client, err := worker.NewClient(cfg.Worker.RedisURL)
				if err != nil {
					return err
				}
				defer client.Close()
				id, err := client.StartBackfill(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			}

			a, err := newApp(ctx, cfg, "backfill")
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			outcomes, err := a.backfill.BackfillAll(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd, outcomes)
		},
	}
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "queue the backfill on the worker instead of running it here")
	return cmd
}

func deliverCmd(cfgFn func() config.Config) *cobra.Command {
	var (
		enqueue bool
		key     string
	)
	cmd := &cobra.Command{
		Use:   "deliver [date]",
		Short: "Post a day's reflection to every configured webhook",
		Long:  "Posts today's reflection, or the one for date (MM-DD, \"14 OCTOBER\" or YYYY-MM-DD).",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cfgFn()
			day, err := dayArg(args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			if enqueue {
				client, err := worker.NewClient(cfg.Worker.RedisURL)
				if err != nil {
					return err
				}
				defer client.Close()
				date := ""
				if day != nil {
					date = day.MonthDay
				}
				id, err := client.EnqueueDeliver(ctx, date)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			}

			a, err := newApp(ctx, cfg, "deliver")
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			// A manual run posts straight away.
			a.delivery.JitterMax = 0
			rep, err := a.delivery.DeliverDaily(ctx, day, key, discord.NewTracker(log.Logger))
			if rep != nil {
				if werr := writeJSON(cmd, rep); werr != nil {
					return werr
				}
			}
			if errors.Is(err, services.ErrAllTargetsFailed) {
				return fmt.Errorf("no webhook accepted the reflection for %s", rep.Date)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "queue the delivery on the worker instead of posting here")
	cmd.Flags().StringVar(&key, "key", "", "idempotency key; a completed run under the same key is not posted again")
	return cmd
}

func showCmd(cfgFn func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show [date]",
		Short: "Print the embed for a day without posting it",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := dayArg(args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			a, err := newApp(ctx, cfgFn(), "show")
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			embed, err := a.delivery.Embed(ctx, day)
			if err != nil {
				return err
			}
			return writeJSON(cmd, discord.WebhookPayload{Embeds: []discord.Embed{embed}})
		},
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
