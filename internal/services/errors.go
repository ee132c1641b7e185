// Package services holds the application logic of the reflections bot: the
// cache-first resolver, the daily delivery pipeline, and the bulk backfill.
// This file centralizes the service-level error values so that callers can
// check them with errors.Is regardless of the apperr kind they are wrapped in.
//
// Translation into user-facing messages or HTTP status codes happens in the
// handler layer.
package services

import "errors"

var (
	// ErrReflectionNotFound indicates that no cached reflection exists for
	// the requested date.
	ErrReflectionNotFound = errors.New("reflection not found")

	// ErrInvalidDate is returned when a date string cannot be canonicalized.
	ErrInvalidDate = errors.New("invalid date")

	// ErrAllTargetsFailed is returned by DeliverDaily when not a single
	// webhook target accepted the message.
	ErrAllTargetsFailed = errors.New("delivery failed for every target")

	// ErrWorkerDisabled is returned when a background task is requested but
	// no queue is configured.
	ErrWorkerDisabled = errors.New("background worker is not configured")

	// ErrBackfillRunning is returned when a backfill is requested while one
	// is already in progress or queued.
	ErrBackfillRunning = errors.New("backfill already running")
)
