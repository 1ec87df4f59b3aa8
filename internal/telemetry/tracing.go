// Package telemetry wraps each pressure-check/kill-decision iteration in
// an OpenTelemetry span, so an operator can see a kill's context (pid,
// rss, score) in a trace backend without reading daemon logs.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/oomkilld/oomkilld/internal/killer"

// Provider owns a TracerProvider for the daemon's lifetime. Build a
// no-op one when no OTLP endpoint is configured, so the daemon never
// hard-depends on a collector being reachable.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// NewNoop returns a Provider whose spans are discarded, used when
// OOMKILLD_OTLP_ENDPOINT is unset.
func NewNoop() *Provider {
	return &Provider{tracer: otel.Tracer(tracerName)}
}

// NewOTLP builds a Provider exporting spans to an OTLP/HTTP collector at
// endpoint (host:port, no scheme).
func NewOTLP(ctx context.Context, endpoint string) (*Provider, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp, tracer: tp.Tracer(tracerName)}, nil
}

// Shutdown flushes and releases exporter resources. Safe to call on a
// no-op Provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// StartIteration begins a span covering one pressure-check/kill-decision
// iteration of the Killer Worker loop.
func (p *Provider) StartIteration(ctx context.Context) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "killer.iteration")
}

// RecordKill annotates span with the outcome of a kill decision.
func RecordKill(span trace.Span, pid int, name string, rssBytes uint64, score float64) {
	span.SetAttributes(
		attribute.Int("oomkilld.pid", pid),
		attribute.String("oomkilld.process_name", name),
		attribute.Int64("oomkilld.vm_rss_bytes", int64(rssBytes)),
		attribute.Float64("oomkilld.score", score),
	)
}
