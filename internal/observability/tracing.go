// Package observability provides OpenTelemetry integration for distributed tracing.
//
// # Architecture Decision: Local Collector Mode
//
// Traces are exported over OTLP HTTP to a collector on localhost instead of
// directly to a vendor endpoint. This decision was made because:
//
//   - The collector provides local buffering and retry, so a slow backend
//     never stalls a synthesis run
//   - The collector handles authentication - no vendor API keys in the app
//   - Switching backends (Jaeger, Datadog Agent, Grafana Tempo) is a
//     collector config change, not a code change
//
// Genkit already traces every model and embedder call through its own
// TracerProvider; registering an exporter there gives per-span visibility
// into the synthesis pipeline (chunking, context grouping, generation,
// evolution, filtering) and benchmark runs without any manual span plumbing.
//
// # Quick Start with Jaeger
//
// Run the all-in-one image with OTLP enabled:
//
//	docker run --rm -p 16686:16686 -p 4318:4318 jaegertracing/all-in-one:latest
//
// Enable tracing in ~/.evalforge/config.yaml:
//
//	trace:
//	  enabled: true
//	  endpoint: "localhost:4318"
//	  environment: "dev"
//	  service_name: "evalforge"
//
// Traces appear at http://localhost:16686 under the configured service name
// within a few seconds of command exit (the shutdown flush).
//
// # Troubleshooting
//
// Test the OTLP endpoint:
//
//	curl -v http://localhost:4318/v1/traces
//
// A 405 means the collector is listening (it only accepts POST); connection
// refused means nothing is bound to the port. Export failures are logged by
// the OpenTelemetry error handler and never fail a run.
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config for the OTLP trace exporter.
type Config struct {
	// Endpoint is the OTLP HTTP collector endpoint (default: localhost:4318)
	Endpoint string
	// Environment is the deployment environment (dev, staging, prod)
	Environment string
	// ServiceName is the service name shown in the tracing backend
	ServiceName string
}

// DefaultEndpoint is the default OTLP HTTP collector endpoint.
const DefaultEndpoint = "localhost:4318"

// SetupTracing registers an OTLP HTTP exporter with Genkit's TracerProvider.
// Model, embedder and pipeline spans are batched and sent to the collector.
//
// Returns a shutdown function that flushes pending spans. Setup failures
// degrade gracefully: the run proceeds untraced with a no-op shutdown.
// If Endpoint is empty, uses DefaultEndpoint (localhost:4318).
func SetupTracing(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	// Set OTEL_SERVICE_NAME for Genkit's TracerProvider to pick up.
	// The provider builds its resource from the environment at span time.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	// Collector handles authentication and forwarding to the backend,
	// so the exporter only ever talks plaintext HTTP on localhost.
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(), // localhost doesn't need TLS
	)
	if err != nil {
		slog.Warn("failed to create trace exporter, tracing disabled", "error", err)
		return func(context.Context) error { return nil }, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	slog.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	// Create a test span to verify the pipeline works
	tracer := tracing.TracerProvider().Tracer("evalforge-init")
	_, span := tracer.Start(ctx, "evalforge.init")
	span.End()

	return tracing.TracerProvider().Shutdown, nil
}
