package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsByRouteAndFallsBackToRawPath(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/reflections/:date", func(c *gin.Context) { c.String(http.StatusOK, "hello") })
	r.GET("/empty", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	baseRoute := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/reflections/:date", "200"))
	baseMiss := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/nope", "404"))

	for _, p := range []string{"/reflections/01-05", "/reflections/02-29", "/nope", "/empty"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, p, nil))
	}

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/reflections/:date", "200")); got != baseRoute+2 {
		t.Fatalf("route counter = %v; want %v", got, baseRoute+2)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/nope", "404")); got != baseMiss+1 {
		t.Fatalf("404 counter = %v; want %v", got, baseMiss+1)
	}
	if got := testutil.ToFloat64(httpInflight); got != 0 {
		t.Fatalf("inflight = %v; want 0", got)
	}
}

func TestCountInteraction_FoldsLabels(t *testing.T) {
	base := testutil.ToFloat64(interactions.WithLabelValues("application_command", "other"))
	baseNone := testutil.ToFloat64(interactions.WithLabelValues("ping", "none"))
	baseKnown := testutil.ToFloat64(interactions.WithLabelValues("application_command", "ping"))

	CountInteraction("application_command", "weather", false)
	CountInteraction("application_command", "made-up", false)
	CountInteraction("ping", "", false)
	CountInteraction("application_command", "ping", true)

	if got := testutil.ToFloat64(interactions.WithLabelValues("application_command", "other")); got != base+2 {
		t.Fatalf("other = %v; want %v", got, base+2)
	}
	if got := testutil.ToFloat64(interactions.WithLabelValues("ping", "none")); got != baseNone+1 {
		t.Fatalf("none = %v; want %v", got, baseNone+1)
	}
	if got := testutil.ToFloat64(interactions.WithLabelValues("application_command", "ping")); got != baseKnown+1 {
		t.Fatalf("known = %v; want %v", got, baseKnown+1)
	}
}
