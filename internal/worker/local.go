package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/daily-reflections-bot/internal/services"
)

// LocalRunner runs backfills on a goroutine in the current process. At most
// one run is active at a time.
type LocalRunner struct {
	Backfill Backfiller

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewLocalRunner returns a runner around b.
func NewLocalRunner(b Backfiller) *LocalRunner { return &LocalRunner{Backfill: b} }

// StartBackfill launches a run detached from ctx's cancellation and returns
// its ID, or services.ErrBackfillRunning when one is in progress.
func (r *LocalRunner) StartBackfill(ctx context.Context) (string, error) {
	if !r.running.CompareAndSwap(false, true) {
		return "", services.ErrBackfillRunning
	}
	id := "local-" + uuid.NewString()
	bg := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.running.Store(false)
		outcomes, err := r.Backfill.BackfillAll(bg)
		if err != nil {
			log.Error().Err(err).Str("run_id", id).Msg("local backfill aborted")
			return
		}
		log.Info().Str("run_id", id).Int("slots", len(outcomes)).Int("failed", countFailed(outcomes)).Msg("local backfill finished")
	}()
	return id, nil
}

// Wait blocks until the active run, if any, returns.
func (r *LocalRunner) Wait() { r.wg.Wait() }

func countFailed(outcomes []services.Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Status == services.OutcomeFail {
			n++
		}
	}
	return n
}
