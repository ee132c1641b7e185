// Package repo implements the data persistence layer for cached reflections
// and the delivery log, backed by GORM. This file provides repository helpers
// for DeliveryRun, the record used to answer retried scheduled triggers
// without posting to every channel a second time.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/daily-reflections-bot/internal/domain"
)

// ErrDuplicate indicates that a delivery run already exists for the key.
var ErrDuplicate = errors.New("duplicate")

// GetDeliveryRunByKey returns a non-expired run recorded under key or
// ErrNotFound.
func GetDeliveryRunByKey(ctx context.Context, db *gorm.DB, key string, now time.Time) (*domain.DeliveryRun, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.DeliveryRun
	err := db.WithContext(ctx).
		Where("key = ? AND expires_at > ?", key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateDeliveryRun persists run, filling ID, CreatedAt and ExpiresAt. An
// empty key stores NULL so keyless runs never collide. It returns
// ErrDuplicate on unique violation.
func CreateDeliveryRun(ctx context.Context, db *gorm.DB, run *domain.DeliveryRun, key string, ttl time.Duration) (*domain.DeliveryRun, error) {
	now := time.Now().UTC()
	run.ID = uuid.NewString()
	run.CreatedAt = now
	run.ExpiresAt = now.Add(ttl)
	run.Key = nil
	if k := strings.TrimSpace(key); k != "" {
		run.Key = &k
	}
	if err := db.WithContext(ctx).Create(run).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return run, nil
}

// ListDeliveryRuns returns the most recent runs, newest first.
func ListDeliveryRuns(ctx context.Context, db *gorm.DB, limit int) ([]domain.DeliveryRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []domain.DeliveryRun
	err := db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}
