// Package services – DeliveryService
//
// DeliveryService runs the daily pipeline: resolve the day's reflection,
// adapt and format it, and fan the embed out to every configured webhook.
// A run succeeds when at least one target accepted the message. Each run is
// recorded in the delivery log; a retried trigger carrying the same
// idempotency key is answered from the log without posting again.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/daily-reflections-bot/internal/apperr"
	"github.com/tbourn/daily-reflections-bot/internal/dates"
	"github.com/tbourn/daily-reflections-bot/internal/discord"
	"github.com/tbourn/daily-reflections-bot/internal/domain"
	"github.com/tbourn/daily-reflections-bot/internal/repo"
)

// Resolver yields the stored-shape reflection for a date.
type Resolver interface {
	Resolve(ctx context.Context, d *dates.Canonical) (*domain.Reflection, error)
}

// Sender posts one embed to many targets.
type Sender interface {
	Deliver(ctx context.Context, embed discord.Embed, targets []string) ([]discord.DeliveryResult, error)
}

// DeliveryReport summarizes one delivery run.
type DeliveryReport struct {
	RunID     string                   `json:"run_id,omitempty"`
	Date      string                   `json:"date"`
	Results   []discord.DeliveryResult `json:"results"`
	Succeeded int                      `json:"succeeded"`
	Replayed  bool                     `json:"replayed,omitempty"`
}

// DeliveryService coordinates the scheduled delivery pipeline.
type DeliveryService struct {
	// DB holds the delivery log; nil disables recording and replay.
	DB       *gorm.DB
	Resolver Resolver
	Sender   Sender
	Targets  []string
	// RunTTL is how long a recorded run can be replayed by key.
	RunTTL time.Duration
	// JitterMax bounds the random wait before a run that is not a replay.
	JitterMax time.Duration

	// Jitter and Sleep default to a uniform draw and a context-aware timer.
	Jitter func(max time.Duration) time.Duration
	Sleep  func(ctx context.Context, d time.Duration) error
}

// Embed resolves d (today when nil) and formats it.
func (s *DeliveryService) Embed(ctx context.Context, d *dates.Canonical) (discord.Embed, error) {
	r, err := s.Resolver.Resolve(ctx, d)
	if err != nil {
		return discord.Embed{}, err
	}
	entry, err := discord.FromStored(r)
	if err != nil {
		return discord.Embed{}, err
	}
	return discord.Format(entry), nil
}

// DeliverDaily resolves d (today when nil), formats it, and posts it to every
// target. tr may be nil. When key is set and a run with that key is still on
// record, the stored report is returned with Replayed set. Any other run
// first waits a random jitter below JitterMax.
//
// The report is returned alongside ErrAllTargetsFailed so callers can show
// per-target detail.
func (s *DeliveryService) DeliverDaily(ctx context.Context, d *dates.Canonical, key string, tr *discord.Tracker) (*DeliveryReport, error) {
	ctx, span := otel.Tracer("services/DeliveryService").Start(ctx, "DeliverDaily",
		trace.WithAttributes(attribute.Int("targets", len(s.Targets))),
	)
	defer span.End()

	if tr == nil {
		tr = discord.NewTracker(log.Logger)
	}

	if prev := s.replay(ctx, key); prev != nil {
		tr.Advance(discord.StateCompleted)
		return prev, nil
	}

	if err := s.wait(ctx); err != nil {
		err = apperr.Wrap(err, apperr.KindInternal, "services.DeliverDaily")
		tr.Fail(err)
		return nil, err
	}

	tr.Advance(discord.StateResolving)
	r, err := s.Resolver.Resolve(ctx, d)
	if err != nil {
		tr.Fail(err)
		return nil, err
	}

	tr.Advance(discord.StateFormatting)
	entry, err := discord.FromStored(r)
	if err != nil {
		tr.Fail(err)
		return nil, err
	}
	embed := discord.Format(entry)

	tr.Advance(discord.StateDelivering)
	results, err := s.Sender.Deliver(ctx, embed, s.Targets)
	if err != nil {
		tr.Fail(err)
		return nil, err
	}

	ok := discord.Succeeded(results)
	deliveryTargets.WithLabelValues("success").Add(float64(ok))
	deliveryTargets.WithLabelValues("failure").Add(float64(len(results) - ok))
	span.SetAttributes(attribute.Int("succeeded", ok))

	report := &DeliveryReport{Date: r.DateString, Results: results, Succeeded: ok}
	if winner := s.record(ctx, key, report); winner != nil {
		tr.Advance(discord.StateCompleted)
		return winner, nil
	}

	if ok == 0 {
		err := apperr.Wrap(ErrAllTargetsFailed, apperr.KindExternalService, "services.DeliverDaily")
		tr.Fail(err)
		return report, err
	}
	tr.Advance(discord.StateCompleted)
	log.Info().Str("date", report.Date).Int("succeeded", ok).Int("targets", len(results)).Msg("daily reflection delivered")
	return report, nil
}

// wait sleeps for a random duration below JitterMax.
func (s *DeliveryService) wait(ctx context.Context) error {
	if s.JitterMax <= 0 {
		return nil
	}
	jitter, sleep := s.Jitter, s.Sleep
	if jitter == nil {
		jitter = randomJitter
	}
	if sleep == nil {
		sleep = sleepCtx
	}
	d := jitter(s.JitterMax)
	if err := sleep(ctx, d); err != nil {
		return err
	}
	log.Debug().Dur("jitter", d).Msg("delivery jitter elapsed")
	return nil
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}

func (s *DeliveryService) replay(ctx context.Context, key string) *DeliveryReport {
	if s.DB == nil || key == "" {
		return nil
	}
	run, err := repo.GetDeliveryRunByKey(ctx, s.DB, key, time.Now().UTC())
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			log.Warn().Err(err).Msg("delivery log lookup failed")
		}
		return nil
	}
	var results []discord.DeliveryResult
	if err := json.Unmarshal([]byte(run.Results), &results); err != nil {
		log.Warn().Err(err).Str("run_id", run.ID).Msg("stored delivery results unreadable")
		return nil
	}
	return &DeliveryReport{
		RunID:     run.ID,
		Date:      run.DateString,
		Results:   results,
		Succeeded: run.Succeeded,
		Replayed:  true,
	}
}

// record writes the run to the delivery log and sets rep.RunID. A run where
// every target failed is logged without its key so a retry under the same
// key delivers again. When a concurrent run already claimed the key, the
// winner's report is returned and this run is discarded.
func (s *DeliveryService) record(ctx context.Context, key string, rep *DeliveryReport) *DeliveryReport {
	if s.DB == nil {
		return nil
	}
	raw, err := json.Marshal(rep.Results)
	if err != nil {
		return nil
	}
	status := domain.DeliveryCompleted
	if rep.Succeeded == 0 {
		status = domain.DeliveryFailed
		key = ""
	}
	ttl := s.RunTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	run, err := repo.CreateDeliveryRun(ctx, s.DB, &domain.DeliveryRun{
		DateString: rep.Date,
		Targets:    len(rep.Results),
		Succeeded:  rep.Succeeded,
		Status:     status,
		Results:    string(raw),
	}, key, ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		if winner := s.replay(ctx, key); winner != nil {
			log.Warn().Str("run_id", winner.RunID).Msg("delivery key claimed by a concurrent run")
			return winner
		}
	}
	if err != nil {
		log.Warn().Err(err).Msg("delivery run not recorded")
		return nil
	}
	rep.RunID = run.ID
	return nil
}

// ListRuns returns the most recent delivery runs, newest first.
func (s *DeliveryService) ListRuns(ctx context.Context, limit int) ([]domain.DeliveryRun, error) {
	if s.DB == nil {
		return nil, apperr.New(apperr.KindConfiguration, "services.ListRuns", "delivery log disabled")
	}
	runs, err := repo.ListDeliveryRuns(ctx, s.DB, limit)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindDatabase, "services.ListRuns")
	}
	return runs, nil
}
