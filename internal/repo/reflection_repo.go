// Package repo implements the data persistence layer for cached reflections
// and the delivery log, backed by GORM. This file provides repository
// functions for the Reflection model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
//
// Write semantics are asymmetric:
//
//   - CreateReflection is an upsert-ignore. When a row with the same
//     date_string already exists the insert is silently dropped and the
//     existing content wins (reported through the returned bool).
//   - UpdateReflection overwrites every content column of an existing row.
//
// Error semantics:
//   - Missing rows surface as ErrNotFound (alias of gorm.ErrRecordNotFound).
//   - Other DB errors are propagated unchanged; classification into
//     apperr kinds happens in the service layer.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/daily-reflections-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateReflection inserts r unless a row with the same DateString exists.
// created reports whether a new row was written.
func CreateReflection(ctx context.Context, db *gorm.DB, r *domain.Reflection) (created bool, err error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date_string"}},
			DoNothing: true,
		}).
		Create(r)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetReflection fetches a row by its canonical display date.
func GetReflection(ctx context.Context, db *gorm.DB, dateString string) (*domain.Reflection, error) {
	var r domain.Reflection
	err := db.WithContext(ctx).
		Where("date_string = ?", dateString).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateReflection overwrites the content columns of the row keyed by
// r.DateString. It returns ErrNotFound when no such row exists.
func UpdateReflection(ctx context.Context, db *gorm.DB, r *domain.Reflection) error {
	res := db.WithContext(ctx).
		Model(&domain.Reflection{}).
		Where("date_string = ?", r.DateString).
		Updates(map[string]any{
			"month_day":   r.MonthDay,
			"title":       r.Title,
			"reflection":  r.Body,
			"quote_text":  r.QuoteText,
			"page_number": r.PageNumber,
			"book_name":   r.BookName,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteReflection removes the row keyed by dateString. It returns
// ErrNotFound when nothing was deleted.
func DeleteReflection(ctx context.Context, db *gorm.DB, dateString string) error {
	res := db.WithContext(ctx).
		Where("date_string = ?", dateString).
		Delete(&domain.Reflection{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountReflections returns the number of cached days.
func CountReflections(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Reflection{}).
		Count(&total).Error
	return total, err
}

// ListReflectionsPage returns a page of cached days in calendar order.
// The caller computes offset and limit (e.g., (page-1)*pageSize).
func ListReflectionsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Reflection, error) {
	var out []domain.Reflection
	err := db.WithContext(ctx).
		Order("month_day asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
