// Package apperr defines the classified error type shared by every layer of
// the bot. Each error carries a Kind (used for HTTP status mapping and log
// severity), the operation that produced it, a timestamp, and a stack trace
// captured with github.com/pkg/errors at the point of first wrapping.
//
// Conventions:
//   - Wrap once, at the boundary where an error first enters the domain
//     (HTTP call, DB query, decode). Wrapping an *Error again is a no-op, so
//     callers further up may call Wrap freely without losing the original kind.
//   - Use errors.As / KindOf to inspect; never compare messages.
//   - Handlers translate Kind to a status code via HTTPStatus.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Kind classifies an error for handling and reporting.
type Kind string

const (
	KindValidation      Kind = "VALIDATION"
	KindAuthentication  Kind = "AUTHENTICATION"
	KindAuthorization   Kind = "AUTHORIZATION"
	KindNetwork         Kind = "NETWORK"
	KindDatabase        Kind = "DATABASE"
	KindNotFound        Kind = "NOT_FOUND"
	KindExternalService Kind = "EXTERNAL_SERVICE"
	KindConfiguration   Kind = "CONFIGURATION"
	KindInternal        Kind = "INTERNAL"
	KindUnknown         Kind = "UNKNOWN"
)

// Error is a classified error with operation context.
type Error struct {
	Kind Kind
	// Op is the logical operation label, e.g. "source.Fetch".
	Op string
	// Time is when the error was first wrapped (UTC).
	Time time.Time
	// Err is the underlying cause, annotated with a stack trace.
	Err error
}

// Error implements the error interface as "op: KIND: cause".
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(pkgerrors.Cause(e.Err).Error())
	}
	return b.String()
}

// Unwrap exposes the cause for errors.Is / errors.As.
func (e *Error) Unwrap() error { return pkgerrors.Cause(e.Err) }

// StackTrace returns the stack captured when the error was first wrapped.
func (e *Error) StackTrace() pkgerrors.StackTrace {
	type tracer interface{ StackTrace() pkgerrors.StackTrace }
	var t tracer
	if errors.As(e.Err, &t) {
		return t.StackTrace()
	}
	return nil
}

// MarshalZerologObject lets an *Error be logged with zerolog's Object().
func (e *Error) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("kind", string(e.Kind)).
		Str("op", e.Op).
		Time("at", e.Time)
	if e.Err != nil {
		ev.Str("cause", pkgerrors.Cause(e.Err).Error())
	}
	if st := e.StackTrace(); len(st) > 0 {
		ev.Str("stack", fmt.Sprintf("%+v", st))
	}
}

// Wrap classifies err under kind. If err already is (or wraps) an *Error, that
// value is returned unchanged. A nil err yields nil. An empty op is replaced
// with the caller's function name.
func Wrap(err error, kind Kind, op string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	if op == "" {
		op = callerName(2)
	}
	return &Error{
		Kind: kind,
		Op:   op,
		Time: time.Now().UTC(),
		Err:  pkgerrors.WithStack(err),
	}
}

// New creates a classified error from a message.
func New(kind Kind, op, msg string) error {
	if op == "" {
		op = callerName(2)
	}
	return &Error{
		Kind: kind,
		Op:   op,
		Time: time.Now().UTC(),
		Err:  pkgerrors.New(msg),
	}
}

// Newf is New with fmt-style formatting.
func Newf(kind Kind, op, format string, args ...any) error {
	if op == "" {
		op = callerName(2)
	}
	return &Error{
		Kind: kind,
		Op:   op,
		Time: time.Now().UTC(),
		Err:  pkgerrors.Errorf(format, args...),
	}
}

// KindOf reports the Kind of err, KindUnknown for unclassified errors and
// the empty Kind for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// Is reports whether err is classified under kind.
func Is(err error, kind Kind) bool { return err != nil && KindOf(err) == kind }

// HTTPStatus maps a Kind to the status code returned to HTTP clients.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNetwork:
		return http.StatusBadGateway
	case KindDatabase, KindExternalService:
		return http.StatusServiceUnavailable
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// callerName returns the short function name skip frames above callerName.
func callerName(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}
	name := fn.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}
