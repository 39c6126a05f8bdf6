package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		// Known exact routes.
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/", "/"},
		{"/api/v1/observation", "/api/v1/observation"},
		{"/api/v1/passes/next", "/api/v1/passes/next"},
		{"/api/v1/doppler", "/api/v1/doppler"},
		{"/api/v1/stream/doppler", "/api/v1/stream/doppler"},
		{"/api/v1/satellites", "/api/v1/satellites"},

		// Parameterized satellite routes collapse to one label.
		{"/api/v1/satellites/25544", "/api/v1/satellites/{id}"},
		{"/api/v1/satellites/iss", "/api/v1/satellites/{id}"},
		{"/api/v1/satellites/FO-29", "/api/v1/satellites/{id}"},

		// Unknown/bot paths collapse to "other".
		{"/wp-admin", "other"},
		{"/robots.txt", "other"},
		{"/.env", "other"},
		{"/api/v1/satellites/25544/extra", "other"},
		{"/api/v2/something", "other"},
		{"/favicon.ico", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := normalizeRoute(tt.path)
			if got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// TestMetricsCardinality verifies that 100 unique satellite ids produce
// exactly 1 distinct path label, not 100.
func TestMetricsCardinality(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		seen[normalizeRoute(fmt.Sprintf("/api/v1/satellites/%d", 40000+i))] = true
	}
	if len(seen) != 1 {
		t.Errorf("expected 1 unique label for parameterized paths, got %d: %v", len(seen), seen)
	}
}

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(samplesTotal.WithLabelValues("analytic", OutcomeOK))
	RecordSample("analytic", OutcomeOK)
	RecordSample("analytic", OutcomeOK)
	if got := testutil.ToFloat64(samplesTotal.WithLabelValues("analytic", OutcomeOK)) - before; got != 2 {
		t.Errorf("samples delta = %v, want 2", got)
	}

	passesBefore := testutil.ToFloat64(passesFoundTotal)
	RecordPasses(3)
	if got := testutil.ToFloat64(passesFoundTotal) - passesBefore; got != 3 {
		t.Errorf("passes delta = %v, want 3", got)
	}

	SetDisagreement(12.5)
	if got := testutil.ToFloat64(strategyDisagreement); got != 12.5 {
		t.Errorf("disagreement = %v, want 12.5", got)
	}

	implBefore := testutil.ToFloat64(implausibleTotal)
	RecordImplausible()
	if got := testutil.ToFloat64(implausibleTotal) - implBefore; got != 1 {
		t.Errorf("implausible delta = %v, want 1", got)
	}

	SetTLEAge(3600)
	if got := testutil.ToFloat64(tleAgeSeconds); got != 3600 {
		t.Errorf("tle age = %v, want 3600", got)
	}

	ObserveSweep("validate", 250*time.Millisecond)
	if n := testutil.CollectAndCount(sweepDurationSeconds); n == 0 {
		t.Error("sweep histogram has no series")
	}
}

func TestMiddlewareRecordsNormalizedRoute(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	counter := httpRequestsTotal.WithLabelValues("/api/v1/satellites/{id}", http.MethodGet, "418")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"25544", "43017"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/satellites/"+id, nil))
		if rec.Code != http.StatusTeapot {
			t.Fatalf("status = %d, want 418", rec.Code)
		}
	}

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("request counter delta = %v, want 2", got)
	}
}
