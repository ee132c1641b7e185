package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// captureLogs swaps the global logger for the duration of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func TestRedact(t *testing.T) {
	cases := []struct{ in, want string }{
		{"https://discord.com/api/webhooks/123/abcDEF-xyz_1", "https://discord.com/api/webhooks/123/[REDACTED]"},
		{"/interactions/987/tok.en-1/callback", "/interactions/987/[REDACTED]/callback"},
		{"Bearer s3cr3t-token", "Bearer [REDACTED]"},
		{"page=2&token=abc&x=1", "page=2&token=[REDACTED]&x=1"},
		{"plain", "plain"},
	}
	for _, c := range cases {
		if got := redact(c.in); got != c.want {
			t.Errorf("redact(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRedactingLogger_MasksSecretsAndAttachesLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogs(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Custom-Secret"}}))
	r.POST("/discord/interactions", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("inside")
		c.Status(http.StatusUnauthorized)
	})

	req := httptest.NewRequest(http.MethodPost, "/discord/interactions?token=abc", nil)
	req.Header.Set("Authorization", "Bearer top-secret")
	req.Header.Set("X-Signature-Ed25519", "deadbeef")
	req.Header.Set("X-Custom-Secret", "hidden")
	req.Header.Set("X-Debug-Url", "see https://discord.com/api/webhooks/1/tok")
	req.Header.Set("X-Request-ID", "rid-9")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, leak := range []string{"top-secret", "deadbeef", "hidden", "/webhooks/1/tok", "token=abc"} {
		if strings.Contains(out, leak) {
			t.Fatalf("log leaks %q: %s", leak, out)
		}
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), out)
	}
	var inner, access map[string]any
	_ = json.Unmarshal([]byte(lines[0]), &inner)
	_ = json.Unmarshal([]byte(lines[1]), &access)
	if inner["request_id"] != "rid-9" || inner["path"] != "/discord/interactions" {
		t.Fatalf("scoped logger fields missing: %v", inner)
	}
	if access["level"] != "warn" || access["status"] != float64(401) || access["message"] != "http_request" {
		t.Fatalf("access log = %v", access)
	}
}

func TestRedactingLogger_ErrorLevelFor5xx(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogs(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusBadGateway) })
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("expected error level: %s", buf.String())
	}
}
