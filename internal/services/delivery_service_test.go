package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/daily-reflections-bot/internal/apperr"
	"github.com/tbourn/daily-reflections-bot/internal/dates"
	"github.com/tbourn/daily-reflections-bot/internal/discord"
	"github.com/tbourn/daily-reflections-bot/internal/domain"
	"github.com/tbourn/daily-reflections-bot/internal/repo"
)

type fakeSender struct {
	calls  int32
	embeds []discord.Embed
	ok     []bool
	err    error
}

func (f *fakeSender) Deliver(_ context.Context, e discord.Embed, targets []string) ([]discord.DeliveryResult, error) {
	atomic.AddInt32(&f.calls, 1)
	f.embeds = append(f.embeds, e)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]discord.DeliveryResult, len(targets))
	for i := range targets {
		out[i] = discord.DeliveryResult{TargetIndex: i, Success: f.ok[i]}
	}
	return out, nil
}

type staticResolver struct {
	r   *domain.Reflection
	err error
}

func (s staticResolver) Resolve(context.Context, *dates.Canonical) (*domain.Reflection, error) {
	return s.r, s.err
}

func sampleRow() *domain.Reflection {
	page := 86
	book := discord.BigBook
	return &domain.Reflection{
		DateString: "14 OCTOBER", MonthDay: "10-14", Title: "A PROGRAM FOR LIVING",
		Body: "It worked!", QuoteText: "We review.", PageNumber: &page, BookName: &book,
	}
}

func TestDeliverDaily_PartialSuccess(t *testing.T) {
	db := newSvcDB(t)
	snd := &fakeSender{ok: []bool{false, true}}
	s := &DeliveryService{DB: db, Resolver: staticResolver{r: sampleRow()}, Sender: snd, Targets: []string{"a", "b"}}
	tr := discord.NewTracker(zerolog.Nop())

	rep, err := s.DeliverDaily(context.Background(), nil, "", tr)
	if err != nil {
		t.Fatalf("DeliverDaily: %v", err)
	}
	if rep.Succeeded != 1 || len(rep.Results) != 2 || rep.Date != "14 OCTOBER" || rep.RunID == "" {
		t.Fatalf("report = %+v", rep)
	}
	if tr.Current() != discord.StateCompleted {
		t.Fatalf("state = %s", tr.Current())
	}
	if got := snd.embeds[0].Fields[2].Value; got != "[ALCOHOLICS ANONYMOUS, p. 86](https://anonpress.org/bb/Page_86.htm)" {
		t.Fatalf("source field = %q", got)
	}
	runs, _ := repo.ListDeliveryRuns(context.Background(), db, 5)
	if len(runs) != 1 || runs[0].Status != domain.DeliveryCompleted {
		t.Fatalf("runs = %+v", runs)
	}
}

func TestDeliverDaily_AllFailed(t *testing.T) {
	db := newSvcDB(t)
	s := &DeliveryService{DB: db, Resolver: staticResolver{r: sampleRow()}, Sender: &fakeSender{ok: []bool{false, false}}, Targets: []string{"a", "b"}}
	tr := discord.NewTracker(zerolog.Nop())

	rep, err := s.DeliverDaily(context.Background(), nil, "", tr)
	if !errors.Is(err, ErrAllTargetsFailed) || apperr.KindOf(err) != apperr.KindExternalService {
		t.Fatalf("err = %v", err)
	}
	if rep == nil || len(rep.Results) != 2 {
		t.Fatalf("report should carry per-target detail: %+v", rep)
	}
	if tr.Current() != discord.StateError {
		t.Fatalf("state = %s", tr.Current())
	}
	runs, _ := repo.ListDeliveryRuns(context.Background(), db, 5)
	if len(runs) != 1 || runs[0].Status != domain.DeliveryFailed {
		t.Fatalf("runs = %+v", runs)
	}
}

func TestDeliverDaily_ResolveAndSendErrors(t *testing.T) {
	boom := apperr.New(apperr.KindNetwork, "test", "down")
	s := &DeliveryService{Resolver: staticResolver{err: boom}, Sender: &fakeSender{}, Targets: []string{"a"}}
	if _, err := s.DeliverDaily(context.Background(), nil, "", nil); apperr.KindOf(err) != apperr.KindNetwork {
		t.Fatalf("resolve err = %v", err)
	}

	cfgErr := apperr.New(apperr.KindConfiguration, "test", "no targets")
	s = &DeliveryService{Resolver: staticResolver{r: sampleRow()}, Sender: &fakeSender{err: cfgErr}}
	if _, err := s.DeliverDaily(context.Background(), nil, "", nil); apperr.KindOf(err) != apperr.KindConfiguration {
		t.Fatalf("send err = %v", err)
	}
}

func TestDeliverDaily_ReplaysByKey(t *testing.T) {
	db := newSvcDB(t)
	snd := &fakeSender{ok: []bool{true}}
	s := &DeliveryService{DB: db, Resolver: staticResolver{r: sampleRow()}, Sender: snd, Targets: []string{"a"}, RunTTL: time.Hour}

	first, err := s.DeliverDaily(context.Background(), nil, "run-2024-10-14", nil)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := s.DeliverDaily(context.Background(), nil, "run-2024-10-14", nil)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !second.Replayed || second.RunID != first.RunID || second.Succeeded != 1 {
		t.Fatalf("replay = %+v", second)
	}
	if atomic.LoadInt32(&snd.calls) != 1 {
		t.Fatalf("sender called %d times", snd.calls)
	}
}

func TestDeliverDaily_FailedRunIsRetriedUnderSameKey(t *testing.T) {
	db := newSvcDB(t)
	snd := &fakeSender{ok: []bool{false}}
	s := &DeliveryService{DB: db, Resolver: staticResolver{r: sampleRow()}, Sender: snd, Targets: []string{"a"}, RunTTL: time.Hour}

	if _, err := s.DeliverDaily(context.Background(), nil, "task:abc", nil); !errors.Is(err, ErrAllTargetsFailed) {
		t.Fatalf("first err = %v", err)
	}
	snd.ok = []bool{true}
	rep, err := s.DeliverDaily(context.Background(), nil, "task:abc", nil)
	if err != nil || rep.Replayed || rep.Succeeded != 1 {
		t.Fatalf("retry = %+v, %v", rep, err)
	}
	if atomic.LoadInt32(&snd.calls) != 2 {
		t.Fatalf("sender called %d times", snd.calls)
	}
}

func TestEmbed(t *testing.T) {
	s := &DeliveryService{Resolver: staticResolver{r: sampleRow()}}
	e, err := s.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if e.Title != "Daily Reflections | 14 October" || e.Description != "## A PROGRAM FOR LIVING" {
		t.Fatalf("embed = %+v", e)
	}
}

func TestDeliverDaily_JitterBeforeResolve(t *testing.T) {
	db := newSvcDB(t)
	snd := &fakeSender{ok: []bool{true}}
	var slept []time.Duration
	s := &DeliveryService{
		DB: db, Resolver: staticResolver{r: sampleRow()}, Sender: snd, Targets: []string{"a"}, RunTTL: time.Hour,
		JitterMax: time.Minute,
		Jitter:    func(max time.Duration) time.Duration { return max / 2 },
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}

	if _, err := s.DeliverDaily(context.Background(), nil, "k1", nil); err != nil {
		t.Fatalf("first: %v", err)
	}
	rep, err := s.DeliverDaily(context.Background(), nil, "k1", nil)
	if err != nil || !rep.Replayed {
		t.Fatalf("replay = %+v, %v", rep, err)
	}
	if len(slept) != 1 || slept[0] != 30*time.Second {
		t.Fatalf("slept = %v; replay must not wait", slept)
	}
}

func TestDeliverDaily_CancelledDuringJitter(t *testing.T) {
	snd := &fakeSender{ok: []bool{true}}
	s := &DeliveryService{
		Resolver: staticResolver{r: sampleRow()}, Sender: snd, Targets: []string{"a"},
		JitterMax: time.Second,
		Sleep:     func(context.Context, time.Duration) error { return context.Canceled },
	}
	tr := discord.NewTracker(zerolog.Nop())

	if _, err := s.DeliverDaily(context.Background(), nil, "", tr); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if atomic.LoadInt32(&snd.calls) != 0 || tr.Current() != discord.StateError {
		t.Fatalf("calls = %d state = %s", snd.calls, tr.Current())
	}
}

// racingSender records a run under key while posting, as a concurrent
// trigger with the same key would.
type racingSender struct {
	fakeSender
	db     *gorm.DB
	key    string
	stolen string
}

func (r *racingSender) Deliver(ctx context.Context, e discord.Embed, targets []string) ([]discord.DeliveryResult, error) {
	run, err := repo.CreateDeliveryRun(ctx, r.db, &domain.DeliveryRun{
		DateString: "14 OCTOBER", Targets: 1, Succeeded: 1, Status: domain.DeliveryCompleted, Results: "[]",
	}, r.key, time.Hour)
	if err != nil {
		return nil, err
	}
	r.stolen = run.ID
	return r.fakeSender.Deliver(ctx, e, targets)
}

func TestDeliverDaily_DuplicateKeyReturnsWinner(t *testing.T) {
	db := newSvcDB(t)
	snd := &racingSender{fakeSender: fakeSender{ok: []bool{true}}, db: db, key: "task:dup"}
	s := &DeliveryService{DB: db, Resolver: staticResolver{r: sampleRow()}, Sender: snd, Targets: []string{"a"}, RunTTL: time.Hour}

	rep, err := s.DeliverDaily(context.Background(), nil, "task:dup", nil)
	if err != nil {
		t.Fatalf("DeliverDaily: %v", err)
	}
	if !rep.Replayed || rep.RunID != snd.stolen {
		t.Fatalf("report = %+v; want winner %s", rep, snd.stolen)
	}
	runs, _ := repo.ListDeliveryRuns(context.Background(), db, 5)
	if len(runs) != 1 {
		t.Fatalf("runs = %d", len(runs))
	}
}

func TestListRuns(t *testing.T) {
	if _, err := (&DeliveryService{}).ListRuns(context.Background(), 5); apperr.KindOf(err) != apperr.KindConfiguration {
		t.Fatalf("no db: %v", err)
	}

	db := newSvcDB(t)
	s := &DeliveryService{DB: db, Resolver: staticResolver{r: sampleRow()}, Sender: &fakeSender{ok: []bool{true}}, Targets: []string{"a"}}
	for range 3 {
		if _, err := s.DeliverDaily(context.Background(), nil, "", nil); err != nil {
			t.Fatalf("DeliverDaily: %v", err)
		}
	}
	runs, err := s.ListRuns(context.Background(), 2)
	if err != nil || len(runs) != 2 {
		t.Fatalf("ListRuns: %v %d", err, len(runs))
	}
	if runs[0].CreatedAt.Before(runs[1].CreatedAt) {
		t.Fatal("runs not newest first")
	}
}
