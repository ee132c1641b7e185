// Package repo implements the data persistence layer for cached reflections
// and the delivery log, backed by GORM. This file provides the aggregate
// query used for weak ETag generation on the reflection listing.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/daily-reflections-bot/internal/domain"
)

// ReflectionsStats returns the number of cached days and the most recent
// UpdatedAt among them. When the cache is empty, count is 0 and
// maxUpdatedAt is nil.
func ReflectionsStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Reflection{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = db.WithContext(ctx).Model(&domain.Reflection{}).
		Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
