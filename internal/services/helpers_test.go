package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/daily-reflections-bot/internal/apperr"
	"github.com/tbourn/daily-reflections-bot/internal/dates"
	"github.com/tbourn/daily-reflections-bot/internal/domain"
	"github.com/tbourn/daily-reflections-bot/internal/source"
)

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Reflection{}, &domain.DeliveryRun{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakeSource serves records keyed by MonthDay; anything else fails like the
// real API does for a missing document.
type fakeSource struct {
	mu      sync.Mutex
	records map[string]*source.Record
	calls   map[string]int
}

func newFakeSource(recs ...*source.Record) *fakeSource {
	f := &fakeSource{records: map[string]*source.Record{}, calls: map[string]int{}}
	for _, r := range recs {
		d, _ := dates.Parse(r.Date)
		f.records[d.MonthDay] = r
	}
	return f
}

func (f *fakeSource) Fetch(_ context.Context, d dates.Canonical) (*source.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[d.MonthDay]++
	if r, ok := f.records[d.MonthDay]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, apperr.Newf(apperr.KindExternalService, "fake.Fetch", "status 404 for %s", d.MonthDay)
}

func (f *fakeSource) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func record(date, title string) *source.Record {
	return &source.Record{
		Date:    date,
		Title:   title,
		Quote:   source.Quote{Text: "line1\r\nline2", BookName: "ALCOHOLICS ANONYMOUS", PageNumber: "p. 86"},
		Comment: "first\nsecond",
	}
}

func mustDate(t *testing.T, s string) dates.Canonical {
	t.Helper()
	d, err := dates.Parse(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}
