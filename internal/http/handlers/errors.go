// Package handlers implements the HTTP endpoints: the Discord interactions
// webhook, the scheduled delivery triggers, reflection CRUD, and backfill.
//
// Error bodies on the API routes use ErrorResponse with a stable snake_case
// code from the list below. The interaction and scheduled routes answer with
// the flat {"error": ...} shape their callers expect.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeInvalidDate    = "invalid_date"
	ErrCodeUpstream       = "upstream_failed"
	ErrCodeUnavailable    = "unavailable"
	ErrCodeListFailed     = "list_failed"
	ErrCodeBackfillFailed = "backfill_failed"
)
