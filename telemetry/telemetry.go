// Package telemetry wires the daemon's OpenTelemetry tracer provider:
// exporting to an OTLP collector over gRPC when an endpoint is
// configured, and falling back to the SDK's no-op provider otherwise.
// This is the teacher's own tracing stack (present in its go.mod,
// previously unwired) given a concrete home.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Shutdown flushes and stops the tracer provider. It is a no-op when no
// SDK provider was installed (the OTLP endpoint was empty).
type Shutdown func(context.Context) error

// Setup configures the global tracer provider. When endpoint is empty,
// it leaves the default no-op provider in place and returns a no-op
// Shutdown; otel.Tracer(name) then always returns a no-op tracer, which
// is exactly what supervisor.New expects when no SDK provider is
// registered.
func Setup(ctx context.Context, serviceName, endpoint string) (Shutdown, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("telemetry: build otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// Tracer returns a tracer scoped to name, delegating to whatever global
// provider Setup installed (or the default no-op one).
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
