// Package monitoring provides the observability layer SPEC_FULL.md's
// DOMAIN STACK section adds on top of the host store: OpenTelemetry spans
// per Doer node (Thinker stages are counted in Prometheus, not traced), and
// Prometheus histograms for wave-parallelism and block latency. It replaces the teacher's hand-rolled
// `trace.go`/`metrics.go` in-memory collectors with the real ecosystem
// libraries the rest of the retrieval pack reaches for.
package monitoring

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig toggles span export — mirrors manifold's telemetry.Config
// shape, narrowed to the one exporter SPEC_FULL.md names (stdouttrace;
// this repo has no OTLP collector to send spans to, unlike manifold's
// otlptracegrpc target).
type TracingConfig struct {
	Enabled     bool
	ServiceName string
}

// SetupTracing installs a global TracerProvider exporting spans to stdout
// when cfg.Enabled, or a no-op provider otherwise. The returned shutdown
// func must be deferred by the caller (cmd/server).
func SetupTracing(ctx context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns the named tracer agents/sinks should use to start spans.
// Call after SetupTracing (or without it — otel defaults to a no-op
// tracer when no provider has been installed).
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
