package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/daily-reflections-bot/internal/apperr"
	"github.com/tbourn/daily-reflections-bot/internal/config"
	"github.com/tbourn/daily-reflections-bot/internal/dates"
	"github.com/tbourn/daily-reflections-bot/internal/discord"
	"github.com/tbourn/daily-reflections-bot/internal/services"
)

// Deliverer runs the daily pipeline.
type Deliverer interface {
	DeliverDaily(ctx context.Context, d *dates.Canonical, key string, tr *discord.Tracker) (*services.DeliveryReport, error)
}

// Backfiller imports every calendar day.
type Backfiller interface {
	BackfillAll(ctx context.Context) ([]services.Outcome, error)
}

// HealthPinger performs one health check.
type HealthPinger interface {
	Ping(ctx context.Context) (int, error)
}

// Deps are the services the task handlers call.
type Deps struct {
	Delivery Deliverer
	Backfill Backfiller
	Pinger   HealthPinger
	Logger   zerolog.Logger
}

// NewMux registers a handler for every task type.
func NewMux(d Deps) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeDeliver, handleDeliver(d.Delivery, d.Logger))
	mux.HandleFunc(TypePing, handlePing(d.Pinger, d.Logger))
	mux.HandleFunc(TypeBackfill, handleBackfill(d.Backfill, d.Logger))
	return mux
}

func handleDeliver(svc Deliverer, lg zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		ctx, span := otel.Tracer("worker").Start(ctx, TypeDeliver)
		defer span.End()

		var p DeliverPayload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &p); err != nil {
				return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
			}
		}
		var day *dates.Canonical
		if p.Date != "" {
			d, err := dates.Parse(p.Date)
			if err != nil {
				return fmt.Errorf("invalid date %q: %w", p.Date, asynq.SkipRetry)
			}
			day = &d
		}

		// Periodic tasks get a fresh ID per tick, retries keep theirs.
		key := ""
		if id, ok := asynq.GetTaskID(ctx); ok {
			key = "task:" + id
		}
		tlog := lg.With().Str("task", TypeDeliver).Str("key", key).Logger()
		rep, err := svc.DeliverDaily(ctx, day, key, discord.NewTracker(tlog))
		if err != nil {
			if apperr.Is(err, apperr.KindValidation) || apperr.Is(err, apperr.KindConfiguration) {
				return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
			}
			return err
		}
		span.SetAttributes(attribute.Int("succeeded", rep.Succeeded), attribute.Bool("replayed", rep.Replayed))
		tlog.Info().Str("date", rep.Date).Int("succeeded", rep.Succeeded).Bool("replayed", rep.Replayed).Msg("scheduled delivery done")
		return nil
	}
}

func handlePing(p HealthPinger, lg zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		if p == nil {
			return fmt.Errorf("pinger not configured: %w", asynq.SkipRetry)
		}
		status, err := p.Ping(ctx)
		if err != nil {
			lg.Warn().Err(err).Int("status", status).Msg("health ping failed")
			return err
		}
		lg.Debug().Int("status", status).Msg("health ping ok")
		return nil
	}
}

func handleBackfill(b Backfiller, lg zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		ctx, span := otel.Tracer("worker").Start(ctx, TypeBackfill)
		defer span.End()

		outcomes, err := b.BackfillAll(ctx)
		if err != nil {
			return err
		}
		failed := countFailed(outcomes)
		span.SetAttributes(attribute.Int("failed", failed))
		lg.Info().Int("slots", len(outcomes)).Int("failed", failed).Msg("backfill task done")
		return nil
	}
}

func errorHandler(lg zerolog.Logger) asynq.ErrorHandlerFunc {
	return func(ctx context.Context, t *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		ev := lg.Error().Err(err).Str("task_type", t.Type()).Int("retry", retried).Int("max_retry", maxRetry)
		if retried >= maxRetry {
			ev.Msg("task failed, retries exhausted")
			return
		}
		ev.Msg("task failed")
	}
}

// Server processes tasks and, when schedules are configured, enqueues the
// periodic ones.
type Server struct {
	srv   *asynq.Server
	sched *asynq.Scheduler
	mux   *asynq.ServeMux
	log   zerolog.Logger
}

// NewServer builds the processor and scheduler from cfg.
func NewServer(cfg config.WorkerConfig, loc *time.Location, d Deps) (*Server, error) {
	if !cfg.Enabled() {
		return nil, services.ErrWorkerDisabled
	}
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindConfiguration, "worker.NewServer")
	}
	if loc == nil {
		loc = time.UTC
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}

	alog := newAsynqLogger(d.Logger)
	level := asynqLevel(zerolog.GlobalLevel())
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency:     concurrency,
		ShutdownTimeout: 30 * time.Second,
		ErrorHandler:    errorHandler(d.Logger),
		Logger:          alog,
		LogLevel:        level,
	})
	sched := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: loc,
		Logger:   alog,
		LogLevel: level,
	})

	if err := register(sched, cfg); err != nil {
		return nil, err
	}
	return &Server{srv: srv, sched: sched, mux: NewMux(d), log: d.Logger}, nil
}

type registrar interface {
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error)
}

// register adds the periodic tasks whose schedule is set.
func register(s registrar, cfg config.WorkerConfig) error {
	if cfg.DeliverySchedule != "" {
		task, err := NewDeliverTask("")
		if err != nil {
			return apperr.Wrap(err, apperr.KindInternal, "worker.register")
		}
		if _, err := s.Register(cfg.DeliverySchedule, task); err != nil {
			return apperr.Wrap(err, apperr.KindConfiguration, "worker.register: DELIVERY_SCHEDULE")
		}
	}
	if cfg.PingSchedule != "" {
		if _, err := s.Register(cfg.PingSchedule, NewPingTask()); err != nil {
			return apperr.Wrap(err, apperr.KindConfiguration, "worker.register: PING_SCHEDULE")
		}
	}
	return nil
}

// Run starts the scheduler and processes tasks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if err := s.sched.Start(); err != nil {
		return apperr.Wrap(err, apperr.KindExternalService, "worker.Run: scheduler")
	}
	defer s.sched.Shutdown()

	if err := s.srv.Start(s.mux); err != nil {
		return apperr.Wrap(err, apperr.KindExternalService, "worker.Run: server")
	}
	s.log.Info().Msg("worker started")
	<-ctx.Done()
	s.srv.Shutdown()
	s.log.Info().Msg("worker stopped")
	return nil
}
