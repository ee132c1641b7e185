package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/daily-reflections-bot/internal/domain"
)

func TestGetDeliveryRunByKey_EmptyKey_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.DeliveryRun{})
	if _, err := GetDeliveryRunByKey(context.Background(), db, "  ", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestCreateAndGetDeliveryRun(t *testing.T) {
	db := newTestDB(t, &domain.DeliveryRun{})
	ctx := context.Background()

	run := &domain.DeliveryRun{DateString: "14 OCTOBER", Targets: 2, Succeeded: 1, Status: domain.DeliveryCompleted, Results: "[]"}
	saved, err := CreateDeliveryRun(ctx, db, run, "cron-2024-10-14", time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if saved.ID == "" || saved.Key == nil || *saved.Key != "cron-2024-10-14" || !saved.ExpiresAt.After(saved.CreatedAt) {
		t.Fatalf("fields not populated: %+v", saved)
	}

	got, err := GetDeliveryRunByKey(ctx, db, "cron-2024-10-14", time.Now().UTC())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != saved.ID || got.Succeeded != 1 {
		t.Fatalf("unexpected run: %+v", got)
	}

	// Expired lookups miss.
	if _, err := GetDeliveryRunByKey(ctx, db, "cron-2024-10-14", time.Now().Add(2*time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired run should not be returned, got %v", err)
	}
}

func TestCreateDeliveryRun_DuplicateKey(t *testing.T) {
	db := newTestDB(t, &domain.DeliveryRun{})
	ctx := context.Background()

	mk := func() *domain.DeliveryRun {
		return &domain.DeliveryRun{DateString: "1 JANUARY", Status: domain.DeliveryFailed}
	}
	if _, err := CreateDeliveryRun(ctx, db, mk(), "k1", time.Hour); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := CreateDeliveryRun(ctx, db, mk(), "k1", time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}
	// Keyless runs never collide.
	if _, err := CreateDeliveryRun(ctx, db, mk(), "", time.Hour); err != nil {
		t.Fatalf("keyless #1: %v", err)
	}
	if _, err := CreateDeliveryRun(ctx, db, mk(), "", time.Hour); err != nil {
		t.Fatalf("keyless #2: %v", err)
	}

	runs, err := ListDeliveryRuns(ctx, db, 0)
	if err != nil || len(runs) != 3 {
		t.Fatalf("list: %d runs, err=%v", len(runs), err)
	}
}

func TestCreateDeliveryRun_Error_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	_, err := CreateDeliveryRun(context.Background(), db, &domain.DeliveryRun{Status: domain.DeliveryCompleted}, "k", time.Hour)
	if err == nil || errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected raw DB error, got %v", err)
	}
}
