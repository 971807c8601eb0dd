package observe

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetup_NoEndpointIsNoop(t *testing.T) {
	// Not parallel: depends on OTEL_EXPORTER_OTLP_ENDPOINT being unset.
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	obs, err := Setup(context.Background(), Config{}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	// Span creation must work and shutdown must be safe with no exporter.
	_, span := obs.Tracer.Start(context.Background(), "test")
	span.End()

	if err := obs.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestMetrics_CountsRuns(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.JobRuns.WithLabelValues("capsule-daytime", "success").Inc()
	m.JobRuns.WithLabelValues("capsule-daytime", "success").Inc()
	m.JobRuns.WithLabelValues("backup", "timeout").Inc()

	if got := testutil.ToFloat64(m.JobRuns.WithLabelValues("capsule-daytime", "success")); got != 2 {
		t.Errorf("success runs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.JobRuns.WithLabelValues("backup", "timeout")); got != 1 {
		t.Errorf("timeout runs = %v, want 1", got)
	}
}

func TestMetrics_HandlerExposesSeries(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.JobRuns.WithLabelValues("hud", "success").Inc()
	m.JobDuration.WithLabelValues("hud").Observe(0.42)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `cadence_job_runs_total{job="hud",outcome="success"} 1`) {
		t.Errorf("missing run counter:\n%s", body)
	}
	if !strings.Contains(body, "cadence_job_duration_seconds_bucket") {
		t.Errorf("missing duration histogram:\n%s", body)
	}
}
