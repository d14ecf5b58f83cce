// Package telemetry wires the OTLP trace exporter. Spans are recorded
// around every agent round trip, which is where all the latency in an
// approval-resume flow lives.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config configures trace export.
type Config struct {
	// Endpoint is the OTLP/HTTP collector address (host:port).
	Endpoint string

	// Insecure disables TLS for the exporter connection.
	Insecure bool

	// ServiceName labels exported spans. Defaults to "briefgate".
	ServiceName string

	// Version is the reported service version.
	Version string
}

// Setup installs a tracer provider exporting to the configured collector
// and returns a shutdown function that flushes pending spans. When cfg is
// nil the default no-op provider stays in place and the returned shutdown
// does nothing.
func Setup(ctx context.Context, cfg *Config) (func(context.Context) error, error) {
	if cfg == nil {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = "briefgate"
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(name),
		semconv.ServiceVersion(cfg.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return provider.Shutdown(ctx)
	}
	return shutdown, nil
}
