package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	if err := m.Handler()(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	return rec.Body.String()
}

func TestMetricsObserve(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveResolve("ok", 20*time.Millisecond)
	m.ObserveCandidate("available")
	m.ObserveCandidate("available")
	m.ObserveCandidate("failed")
	m.ObserveConflict("dropped")
	m.ObserveAvailability("busy")
	m.ObserveAssistant("quota")
	m.ObserveHTTP(http.MethodPost, "/api/v1/alternatives", http.StatusOK, time.Millisecond)

	body := scrape(t, m)
	for _, want := range []string{
		`clinicbook_resolver_candidates_total{result="available"} 2`,
		`clinicbook_resolver_candidates_total{result="failed"} 1`,
		`clinicbook_conflicts_events_total{state="dropped"} 1`,
		`clinicbook_http_requests_total{method="POST",route="/api/v1/alternatives",status="200"} 1`,
		`clinicbook_resolver_runs_total{outcome="ok"} 1`,
		`clinicbook_assistant_chats_total{outcome="quota"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in exposition", want)
		}
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveResolve("ok", time.Second)
	m.ObserveCandidate("failed")
	m.ObserveAvailability("available")
	m.ObserveConflict("queued")
	m.ObserveAssistant("ok")
	m.ObserveHTTP("GET", "/", 200, time.Millisecond)
}

func TestMetricsHandler_NilRegistry(t *testing.T) {
	m := NewMetrics(nil)
	m.ObserveConflict("written")

	if !strings.Contains(scrape(t, m), "clinicbook_conflicts_events_total") {
		t.Error("expected conflict counter in exposition")
	}
}
