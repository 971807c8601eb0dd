// Package observe bundles cadence's observability surface: structured
// logging, OTLP trace export, and job outcome metrics. The Observer is
// constructed once at startup and passed explicitly into the scheduler
// and job runner; nothing in this repo reaches for ambient global
// tracer state.
package observe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const serviceName = "cadence"

// Config holds observability configuration.
type Config struct {
	// OTLPEndpoint is the base URL of an OTLP/HTTP collector
	// (e.g. "http://localhost:4318"). Falls back to
	// OTEL_EXPORTER_OTLP_ENDPOINT; empty disables trace export.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Observer is the explicitly-passed observability context.
type Observer struct {
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *Metrics

	shutdown func(context.Context) error
}

// Setup builds an Observer. When no OTLP endpoint is configured the
// tracer is a no-op and span creation costs nothing.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (*Observer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	endpoint := cfg.OTLPEndpoint
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}

	obs := &Observer{
		Logger:   logger,
		Metrics:  NewMetrics(),
		shutdown: func(context.Context) error { return nil },
	}

	if endpoint == "" {
		obs.Tracer = noop.NewTracerProvider().Tracer(serviceName)
		return obs, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint+"/v1/traces"))
	if err != nil {
		return nil, fmt.Errorf("observe: create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("observe: build resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	obs.Tracer = provider.Tracer(serviceName)
	obs.shutdown = provider.Shutdown

	logger.Info("trace export enabled", "endpoint", endpoint)
	return obs, nil
}

// Shutdown flushes pending spans. Safe to call when tracing is disabled.
func (o *Observer) Shutdown(ctx context.Context) error {
	return o.shutdown(ctx)
}

// StatusAttr is the span attribute carrying the job outcome.
func StatusAttr(status string) attribute.KeyValue {
	return attribute.String("status", status)
}

// Metrics holds the prometheus collectors for job execution.
type Metrics struct {
	registry *prometheus.Registry

	JobRuns     *prometheus.CounterVec
	JobDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cadence_job_runs_total",
			Help: "Job runs by terminal outcome.",
		}, []string{"job", "outcome"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cadence_job_duration_seconds",
			Help:    "Wall-clock duration of job runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
		}, []string{"job"}),
	}

	registry.MustRegister(m.JobRuns, m.JobDuration)
	return m
}

// Handler serves the metrics in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
