package apperr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestWrap_NilIsNil(t *testing.T) {
	if err := Wrap(nil, KindNetwork, "op"); err != nil {
		t.Fatalf("Wrap(nil) = %v, want nil", err)
	}
}

func TestWrap_ClassifiesAndKeepsCause(t *testing.T) {
	err := Wrap(context.DeadlineExceeded, KindNetwork, "source.Fetch")

	var ae *Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if ae.Kind != KindNetwork || ae.Op != "source.Fetch" {
		t.Fatalf("unexpected kind/op: %+v", ae)
	}
	if ae.Time.IsZero() {
		t.Fatalf("timestamp not recorded")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("cause lost through Unwrap")
	}
	if len(ae.StackTrace()) == 0 {
		t.Fatalf("stack trace not captured")
	}
	if got := err.Error(); got != "source.Fetch: NETWORK: context deadline exceeded" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestWrap_RewrapIsNoop(t *testing.T) {
	first := Wrap(errors.New("boom"), KindDatabase, "repo.Get")
	second := Wrap(first, KindInternal, "services.Resolve")
	if first != second {
		t.Fatalf("rewrap must return the same value")
	}
	if KindOf(second) != KindDatabase {
		t.Fatalf("kind changed on rewrap: %s", KindOf(second))
	}

	// Also when the *Error sits behind a fmt wrapper.
	third := Wrap(fmt.Errorf("ctx: %w", first), KindUnknown, "x")
	if third != first {
		t.Fatalf("nested *Error should be returned unchanged")
	}
}

func TestWrap_DerivesOpFromCaller(t *testing.T) {
	err := Wrap(errors.New("x"), KindInternal, "")
	var ae *Error
	_ = errors.As(err, &ae)
	if !strings.Contains(ae.Op, "TestWrap_DerivesOpFromCaller") {
		t.Fatalf("op = %q, want caller name", ae.Op)
	}
}

func TestNewAndNewf(t *testing.T) {
	if KindOf(New(KindValidation, "dates.Parse", "bad")) != KindValidation {
		t.Fatalf("New kind mismatch")
	}
	err := Newf(KindNotFound, "", "missing %s", "14 OCTOBER")
	if !strings.Contains(err.Error(), "missing 14 OCTOBER") {
		t.Fatalf("Newf message = %q", err.Error())
	}
}

func TestKindOfAndIs(t *testing.T) {
	if KindOf(nil) != "" {
		t.Fatalf("KindOf(nil) should be empty")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Fatalf("plain errors are KindUnknown")
	}
	if !Is(New(KindAuthentication, "op", "x"), KindAuthentication) {
		t.Fatalf("Is should match")
	}
	if Is(nil, KindUnknown) {
		t.Fatalf("Is(nil) should be false")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:      http.StatusBadRequest,
		KindAuthentication:  http.StatusUnauthorized,
		KindAuthorization:   http.StatusForbidden,
		KindNetwork:         http.StatusBadGateway,
		KindDatabase:        http.StatusServiceUnavailable,
		KindNotFound:        http.StatusNotFound,
		KindExternalService: http.StatusServiceUnavailable,
		KindUnknown:         http.StatusInternalServerError,
		KindInternal:        http.StatusInternalServerError,
		KindConfiguration:   http.StatusInternalServerError,
	}
	for k, want := range cases {
		if got := HTTPStatus(k); got != want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", k, got, want)
		}
	}
}

func TestMarshalZerologObject(t *testing.T) {
	var buf bytes.Buffer
	lg := zerolog.New(&buf)

	err := Wrap(errors.New("upstream 503"), KindExternalService, "source.Fetch")
	var ae *Error
	_ = errors.As(err, &ae)
	lg.Error().Object("error_context", ae).Msg("fetch failed")

	var m map[string]any
	if jerr := json.Unmarshal(buf.Bytes(), &m); jerr != nil {
		t.Fatalf("log not JSON: %v (%s)", jerr, buf.String())
	}
	ctx, _ := m["error_context"].(map[string]any)
	if ctx["kind"] != "EXTERNAL_SERVICE" || ctx["op"] != "source.Fetch" || ctx["cause"] != "upstream 503" {
		t.Fatalf("unexpected error_context: %v", ctx)
	}
	if s, _ := ctx["stack"].(string); s == "" {
		t.Fatalf("stack missing")
	}
}
