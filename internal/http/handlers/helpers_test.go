package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/daily-reflections-bot/internal/apperr"
	"github.com/tbourn/daily-reflections-bot/internal/dates"
	"github.com/tbourn/daily-reflections-bot/internal/discord"
	"github.com/tbourn/daily-reflections-bot/internal/domain"
	"github.com/tbourn/daily-reflections-bot/internal/services"
	"github.com/tbourn/daily-reflections-bot/internal/source"
)

// ---------- fakes ----------

type fakeDelivery struct {
	embed    discord.Embed
	embedErr error
	report   *services.DeliveryReport
	err      error

	gotDay *dates.Canonical
	gotKey string
	calls  int

	runs     []domain.DeliveryRun
	runsErr  error
	gotLimit int
}

func (f *fakeDelivery) Embed(context.Context, *dates.Canonical) (discord.Embed, error) {
	return f.embed, f.embedErr
}

func (f *fakeDelivery) DeliverDaily(_ context.Context, d *dates.Canonical, key string, tr *discord.Tracker) (*services.DeliveryReport, error) {
	f.calls++
	f.gotDay, f.gotKey = d, key
	if tr == nil {
		panic("nil tracker")
	}
	return f.report, f.err
}

func (f *fakeDelivery) ListRuns(_ context.Context, limit int) ([]domain.DeliveryRun, error) {
	f.gotLimit = limit
	return f.runs, f.runsErr
}

type sentFollowUp struct {
	token   string
	payload discord.WebhookPayload
}

type fakeDiscord struct {
	mu          sync.Mutex
	deferred    []string
	followUps   []sentFollowUp
	deferErr    error
	followUpErr error
}

func (f *fakeDiscord) SendDeferred(_ context.Context, id, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deferred = append(f.deferred, id+"/"+token)
	return f.deferErr
}

func (f *fakeDiscord) SendFollowUp(_ context.Context, token string, p discord.WebhookPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followUps = append(f.followUps, sentFollowUp{token: token, payload: p})
	return f.followUpErr
}

type fakeRefSvc struct {
	rows       map[string]domain.Reflection
	refreshRec *source.Record
	refreshErr error
}

func newFakeRefSvc() *fakeRefSvc { return &fakeRefSvc{rows: map[string]domain.Reflection{}} }

func (f *fakeRefSvc) Refresh(context.Context, *dates.Canonical) (*source.Record, error) {
	return f.refreshRec, f.refreshErr
}

func (f *fakeRefSvc) Get(_ context.Context, d dates.Canonical) (*domain.Reflection, error) {
	r, ok := f.rows[d.Display]
	if !ok {
		return nil, apperr.Wrap(services.ErrReflectionNotFound, apperr.KindNotFound, "fake.Get")
	}
	return &r, nil
}

func (f *fakeRefSvc) Create(_ context.Context, r *domain.Reflection) (bool, error) {
	d, err := dates.Parse(r.DateString)
	if err != nil {
		return false, apperr.Wrap(services.ErrInvalidDate, apperr.KindValidation, "fake.Create")
	}
	r.DateString, r.MonthDay = d.Display, d.MonthDay
	if _, exists := f.rows[d.Display]; exists {
		return false, nil
	}
	f.rows[d.Display] = *r
	return true, nil
}

func (f *fakeRefSvc) Update(_ context.Context, d dates.Canonical, r *domain.Reflection) error {
	if _, exists := f.rows[d.Display]; !exists {
		return apperr.Wrap(services.ErrReflectionNotFound, apperr.KindNotFound, "fake.Update")
	}
	r.DateString, r.MonthDay = d.Display, d.MonthDay
	f.rows[d.Display] = *r
	return nil
}

func (f *fakeRefSvc) Delete(_ context.Context, d dates.Canonical) error {
	if _, exists := f.rows[d.Display]; !exists {
		return apperr.Wrap(services.ErrReflectionNotFound, apperr.KindNotFound, "fake.Delete")
	}
	delete(f.rows, d.Display)
	return nil
}

func (f *fakeRefSvc) ListPage(context.Context, int, int) ([]domain.Reflection, int64, error) {
	out := make([]domain.Reflection, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, r)
	}
	return out, int64(len(out)), nil
}

type fakeBackfill struct {
	id    string
	err   error
	calls int
}

func (f *fakeBackfill) StartBackfill(context.Context) (string, error) {
	f.calls++
	return f.id, f.err
}

// ---------- helpers ----------

var fixedNow = time.Date(2024, 10, 14, 12, 0, 0, 0, time.UTC)

// newTestHandlers builds Handlers with a frozen clock.
func newTestHandlers(d Deps) *Handlers {
	h := New(d)
	h.now = func() time.Time { return fixedNow }
	return h
}

func serve(r *gin.Engine, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func testEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func ptr[T any](v T) *T { return &v }

func mustHTTPStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d; want %d (body %s)", w.Code, want, w.Body.String())
	}
}
