// Package services – BackfillService
//
// BackfillService imports every calendar slot from the external source into
// the cache. Slots are fetched in fixed-size concurrent batches with a pause
// between batches to stay under the source's rate limit; every fetched
// record is then written with create-if-absent semantics.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/daily-reflections-bot/internal/dates"
	"github.com/tbourn/daily-reflections-bot/internal/domain"
	"github.com/tbourn/daily-reflections-bot/internal/source"
)

// Outcome statuses.
const (
	OutcomeSuccess = "Success"
	OutcomeFail    = "Fail"
)

// Outcome is the per-slot result of a backfill run. Date is "MM-DD".
type Outcome struct {
	Status string `json:"status"`
	Date   string `json:"date"`
}

// Writer is the subset of ReflectionRepo the backfill needs.
type Writer interface {
	CreateReflection(ctx context.Context, db *gorm.DB, r *domain.Reflection) (bool, error)
}

// BackfillService bulk-loads the cache.
type BackfillService struct {
	DB     *gorm.DB
	Repo   Writer
	Source Fetcher

	// BatchSize is the number of concurrent fetches per batch (20 when zero).
	BatchSize int
	// Delay is the pause between batches.
	Delay time.Duration
	// Slots overrides the calendar grid; nil means dates.All().
	Slots []dates.Canonical
	// Sleep waits d or until ctx is done; defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewBackfillService wires a service with RepoShim.
func NewBackfillService(db *gorm.DB, src Fetcher, batchSize int, delay time.Duration) *BackfillService {
	return &BackfillService{DB: db, Repo: RepoShim{}, Source: src, BatchSize: batchSize, Delay: delay}
}

type fetched struct {
	slot dates.Canonical
	rec  *source.Record
}

// BackfillAll fetches every slot and writes what it got. Outcomes are in
// slot order; a failed fetch is Fail and a fetched slot reports the result
// of its write. If ctx is cancelled between or during batches the outcomes
// of the completed batches are returned with ctx.Err(); nothing fetched is
// written then.
func (s *BackfillService) BackfillAll(ctx context.Context) ([]Outcome, error) {
	slots := s.Slots
	if slots == nil {
		slots = dates.All()
	}
	size := s.BatchSize
	if size <= 0 {
		size = 20
	}
	sleep := s.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	ctx, span := otel.Tracer("services/BackfillService").Start(ctx, "BackfillAll",
		trace.WithAttributes(attribute.Int("slots", len(slots)), attribute.Int("batch_size", size)),
	)
	defer span.End()

	outcomes := make([]Outcome, 0, len(slots))
	got := make([]fetched, len(slots))

	for start := 0; start < len(slots); start += size {
		if start > 0 {
			if err := sleep(ctx, s.Delay); err != nil {
				return outcomes, err
			}
		}
		end := min(start+size, len(slots))

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				rec, err := s.Source.Fetch(gctx, slots[i])
				if err != nil {
					if cerr := ctx.Err(); cerr != nil {
						return cerr
					}
					log.Debug().Err(err).Str("date", slots[i].MonthDay).Msg("backfill fetch failed")
					return nil
				}
				got[i] = fetched{slot: slots[i], rec: rec}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return outcomes, err
		}

		for i := start; i < end; i++ {
			if got[i].rec == nil {
				outcomes = append(outcomes, Outcome{Status: OutcomeFail, Date: slots[i].MonthDay})
			} else {
				outcomes = append(outcomes, Outcome{Status: OutcomeSuccess, Date: slots[i].MonthDay})
			}
		}
		log.Info().Int("from", start).Int("to", end).Int("total", len(slots)).Msg("backfill batch fetched")
	}

	// Fetched slots are provisionally Success; the write decides.
	for i := range outcomes {
		if got[i].rec == nil {
			continue
		}
		row := ToReflection(got[i].rec, got[i].slot)
		if _, err := s.Repo.CreateReflection(ctx, s.DB, row); err != nil {
			log.Error().Err(err).Str("date", got[i].slot.MonthDay).Msg("backfill write failed")
			outcomes[i].Status = OutcomeFail
		}
	}

	failed := 0
	for _, o := range outcomes {
		backfillOutcomes.WithLabelValues(o.Status).Inc()
		if o.Status == OutcomeFail {
			failed++
		}
	}
	span.SetAttributes(attribute.Int("failed", failed))
	log.Info().Int("slots", len(outcomes)).Int("failed", failed).Msg("backfill complete")
	return outcomes, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
