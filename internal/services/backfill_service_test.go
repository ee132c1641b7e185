package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/daily-reflections-bot/internal/dates"
	"github.com/tbourn/daily-reflections-bot/internal/repo"
	"github.com/tbourn/daily-reflections-bot/internal/source"
)

func TestBackfillAll_InvalidSlotFailsWithoutAborting(t *testing.T) {
	db := newSvcDB(t)
	src := newFakeSource(record("1 JANUARY", "A"), record("28 FEBRUARY", "B"), record("31 DECEMBER", "C"))

	var sleeps []time.Duration
	s := NewBackfillService(db, src, 20, 5500*time.Millisecond)
	s.Sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	out, err := s.BackfillAll(context.Background())
	if err != nil {
		t.Fatalf("BackfillAll: %v", err)
	}
	if len(out) != 12*31 {
		t.Fatalf("outcomes = %d", len(out))
	}
	// 372 slots / 20 per batch = 19 batches, 18 pauses.
	if len(sleeps) != 18 || sleeps[0] != 5500*time.Millisecond {
		t.Fatalf("sleeps = %v", sleeps)
	}

	byDate := map[string]string{}
	for _, o := range out {
		byDate[o.Date] = o.Status
	}
	if byDate["02-31"] != OutcomeFail {
		t.Fatalf("02-31 = %q", byDate["02-31"])
	}
	for _, md := range []string{"01-01", "02-28", "12-31"} {
		if byDate[md] != OutcomeSuccess {
			t.Fatalf("%s = %q", md, byDate[md])
		}
	}
	if out[0].Date != "01-01" || out[len(out)-1].Date != "12-31" {
		t.Fatalf("order: first %s last %s", out[0].Date, out[len(out)-1].Date)
	}

	n, err := repo.CountReflections(context.Background(), db)
	if err != nil || n != 3 {
		t.Fatalf("stored = %d (%v)", n, err)
	}
}

func TestBackfillAll_WriteFailureMarksFail(t *testing.T) {
	db := newSvcDB(t)
	if err := db.Exec("DROP TABLE daily_reflections").Error; err != nil {
		t.Fatalf("drop: %v", err)
	}
	s := NewBackfillService(db, newFakeSource(record("1 JANUARY", "A")), 2, 0)
	s.Slots = []dates.Canonical{mustDate(t, "01-01"), mustDate(t, "01-02")}

	out, err := s.BackfillAll(context.Background())
	if err != nil {
		t.Fatalf("BackfillAll: %v", err)
	}
	if out[0].Status != OutcomeFail || out[1].Status != OutcomeFail {
		t.Fatalf("outcomes = %+v", out)
	}
}

func TestBackfillAll_CancelBetweenBatches(t *testing.T) {
	db := newSvcDB(t)
	src := newFakeSource()
	ctx, cancel := context.WithCancel(context.Background())

	s := NewBackfillService(db, src, 10, time.Hour)
	s.Sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	out, err := s.BackfillAll(ctx)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if len(out) != 10 || src.total() != 10 {
		t.Fatalf("outcomes = %d, fetches = %d", len(out), src.total())
	}
}

// cancellingSource cancels the run on its first fetch and then fails every
// fetch the way a request on a dead context does.
type cancellingSource struct {
	cancel context.CancelFunc
}

func (c cancellingSource) Fetch(ctx context.Context, _ dates.Canonical) (*source.Record, error) {
	c.cancel()
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestBackfillAll_CancelDuringBatch(t *testing.T) {
	db := newSvcDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	s := NewBackfillService(db, cancellingSource{cancel: cancel}, 5, 0)
	s.Sleep = func(context.Context, time.Duration) error { t.Fatal("second batch started"); return nil }

	out, err := s.BackfillAll(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("outcomes = %+v", out)
	}
}
