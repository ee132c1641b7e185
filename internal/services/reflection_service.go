// Package services – ReflectionService
//
// ReflectionService maps a calendar date to exactly one reflection. It reads
// the local cache first; on a miss it fetches from the external source,
// converts the record to the stored shape, hands a write-back to a detached
// goroutine, and returns the fresh content without waiting for the write.
// It also exposes the explicit CRUD operations over the cache.
//
// Observability: public methods are OpenTelemetry-instrumented and the
// resolve path counts cache hits, source fetches, and failed write-backs.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/daily-reflections-bot/internal/apperr"
	"github.com/tbourn/daily-reflections-bot/internal/dates"
	"github.com/tbourn/daily-reflections-bot/internal/domain"
	"github.com/tbourn/daily-reflections-bot/internal/repo"
	"github.com/tbourn/daily-reflections-bot/internal/source"
	"github.com/tbourn/daily-reflections-bot/internal/utils"
)

// Fetcher retrieves one record from the external source.
type Fetcher interface {
	Fetch(ctx context.Context, d dates.Canonical) (*source.Record, error)
}

// ReflectionRepo is the cache contract required by the services.
type ReflectionRepo interface {
	GetReflection(ctx context.Context, db *gorm.DB, dateString string) (*domain.Reflection, error)
	CreateReflection(ctx context.Context, db *gorm.DB, r *domain.Reflection) (bool, error)
	UpdateReflection(ctx context.Context, db *gorm.DB, r *domain.Reflection) error
	DeleteReflection(ctx context.Context, db *gorm.DB, dateString string) error
	CountReflections(ctx context.Context, db *gorm.DB) (int64, error)
	ListReflectionsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Reflection, error)
}

// RepoShim adapts the repo package's free functions to ReflectionRepo.
type RepoShim struct{}

func (RepoShim) GetReflection(ctx context.Context, db *gorm.DB, dateString string) (*domain.Reflection, error) {
	return repo.GetReflection(ctx, db, dateString)
}

func (RepoShim) CreateReflection(ctx context.Context, db *gorm.DB, r *domain.Reflection) (bool, error) {
	return repo.CreateReflection(ctx, db, r)
}

func (RepoShim) UpdateReflection(ctx context.Context, db *gorm.DB, r *domain.Reflection) error {
	return repo.UpdateReflection(ctx, db, r)
}

func (RepoShim) DeleteReflection(ctx context.Context, db *gorm.DB, dateString string) error {
	return repo.DeleteReflection(ctx, db, dateString)
}

func (RepoShim) CountReflections(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountReflections(ctx, db)
}

func (RepoShim) ListReflectionsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Reflection, error) {
	return repo.ListReflectionsPage(ctx, db, offset, limit)
}

// ReflectionService resolves and manages cached reflections.
type ReflectionService struct {
	DB     *gorm.DB
	Repo   ReflectionRepo
	Source Fetcher

	// Location decides what "today" means when no date is given.
	Location *time.Location
	// Now is the clock; defaults to time.Now.
	Now func() time.Time

	pending sync.WaitGroup
}

// NewReflectionService wires a service with RepoShim and UTC.
func NewReflectionService(db *gorm.DB, src Fetcher, loc *time.Location) *ReflectionService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReflectionService{DB: db, Repo: RepoShim{}, Source: src, Location: loc, Now: time.Now}
}

// Today returns the canonical date for the current day in s.Location.
func (s *ReflectionService) Today() dates.Canonical {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	return dates.FromTime(now().In(loc))
}

func (s *ReflectionService) target(d *dates.Canonical) dates.Canonical {
	if d == nil || d.IsZero() {
		return s.Today()
	}
	return *d
}

// Resolve returns the reflection for d (today when nil). A cache hit never
// touches the source. On a miss the fetched record is returned immediately
// and written back asynchronously; write-back failures are only logged.
// Source failures are returned as NETWORK or EXTERNAL_SERVICE errors.
func (s *ReflectionService) Resolve(ctx context.Context, d *dates.Canonical) (*domain.Reflection, error) {
	day := s.target(d)
	ctx, span := otel.Tracer("services/ReflectionService").Start(ctx, "Resolve",
		trace.WithAttributes(attribute.String("reflection.date", day.Display)),
	)
	defer span.End()

	cached, err := s.Repo.GetReflection(ctx, s.DB, day.Display)
	switch {
	case err == nil:
		resolveTotal.WithLabelValues("cache").Inc()
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	case !errors.Is(err, repo.ErrNotFound):
		log.Warn().Err(err).Str("date", day.Display).Msg("cache read failed, falling back to source")
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	rec, err := s.Source.Fetch(ctx, day)
	if err != nil {
		resolveTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "source fetch failed")
		return nil, err
	}
	resolveTotal.WithLabelValues("source").Inc()

	fresh := ToReflection(rec, day)
	s.writeBack(ctx, fresh)
	return fresh, nil
}

// Refresh always fetches d (today when nil) from the source, schedules a
// write-back, and returns the raw record.
func (s *ReflectionService) Refresh(ctx context.Context, d *dates.Canonical) (*source.Record, error) {
	day := s.target(d)
	ctx, span := otel.Tracer("services/ReflectionService").Start(ctx, "Refresh",
		trace.WithAttributes(attribute.String("reflection.date", day.Display)),
	)
	defer span.End()

	rec, err := s.Source.Fetch(ctx, day)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.writeBack(ctx, ToReflection(rec, day))
	return rec, nil
}

// writeBack persists r on a goroutine detached from the caller's
// cancellation. Copies are taken so the caller may mutate its value.
func (s *ReflectionService) writeBack(ctx context.Context, r *domain.Reflection) {
	row := *r
	bg := context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		created, err := s.Repo.CreateReflection(bg, s.DB, &row)
		if err != nil {
			writebackFailures.Inc()
			log.Error().Err(err).Str("date", row.DateString).Msg("reflection write-back failed")
			return
		}
		log.Debug().Str("date", row.DateString).Bool("created", created).Msg("reflection write-back")
	}()
}

// Wait blocks until every pending write-back has finished.
func (s *ReflectionService) Wait() { s.pending.Wait() }

// Get returns the cached reflection for d or ErrReflectionNotFound.
func (s *ReflectionService) Get(ctx context.Context, d dates.Canonical) (*domain.Reflection, error) {
	r, err := s.Repo.GetReflection(ctx, s.DB, d.Display)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, apperr.Wrap(ErrReflectionNotFound, apperr.KindNotFound, "services.Get")
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindDatabase, "services.Get")
	}
	return r, nil
}

// Create stores r under its canonical date unless that date already exists.
// created is false when an existing row was kept.
func (s *ReflectionService) Create(ctx context.Context, r *domain.Reflection) (created bool, err error) {
	if err := canonicalizeRow(r); err != nil {
		return false, err
	}
	created, err = s.Repo.CreateReflection(ctx, s.DB, r)
	if err != nil {
		return false, apperr.Wrap(err, apperr.KindDatabase, "services.Create")
	}
	return created, nil
}

// Update overwrites the content of the row for d.
func (s *ReflectionService) Update(ctx context.Context, d dates.Canonical, r *domain.Reflection) error {
	r.DateString = d.Display
	r.MonthDay = d.MonthDay
	err := s.Repo.UpdateReflection(ctx, s.DB, r)
	if errors.Is(err, repo.ErrNotFound) {
		return apperr.Wrap(ErrReflectionNotFound, apperr.KindNotFound, "services.Update")
	}
	if err != nil {
		return apperr.Wrap(err, apperr.KindDatabase, "services.Update")
	}
	return nil
}

// Delete removes the row for d.
func (s *ReflectionService) Delete(ctx context.Context, d dates.Canonical) error {
	err := s.Repo.DeleteReflection(ctx, s.DB, d.Display)
	if errors.Is(err, repo.ErrNotFound) {
		return apperr.Wrap(ErrReflectionNotFound, apperr.KindNotFound, "services.Delete")
	}
	if err != nil {
		return apperr.Wrap(err, apperr.KindDatabase, "services.Delete")
	}
	return nil
}

// ListPage returns a page of cached reflections in calendar order and the
// total count. Invalid page or size values fall back to 1 and 20.
func (s *ReflectionService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Reflection, int64, error) {
	ctx, span := otel.Tracer("services/ReflectionService").Start(ctx, "ListPage",
		trace.WithAttributes(attribute.Int("page", page), attribute.Int("page_size", pageSize)),
	)
	defer span.End()

	offset, _, pageSize := utils.Paginate(page, pageSize, 20)

	total, err := s.Repo.CountReflections(ctx, s.DB)
	if err != nil {
		return nil, 0, apperr.Wrap(err, apperr.KindDatabase, "services.ListPage")
	}
	if total == 0 {
		return []domain.Reflection{}, 0, nil
	}
	items, err := s.Repo.ListReflectionsPage(ctx, s.DB, offset, pageSize)
	if err != nil {
		return nil, 0, apperr.Wrap(err, apperr.KindDatabase, "services.ListPage")
	}
	return items, total, nil
}

// canonicalizeRow rewrites the keys of r from its DateString, falling back
// to MonthDay.
func canonicalizeRow(r *domain.Reflection) error {
	raw := r.DateString
	if raw == "" {
		raw = r.MonthDay
	}
	d, err := dates.Parse(raw)
	if err != nil {
		return apperr.Wrap(ErrInvalidDate, apperr.KindValidation, "services.canonicalizeRow")
	}
	r.DateString = d.Display
	r.MonthDay = d.MonthDay
	return nil
}
