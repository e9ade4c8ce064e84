package telemetry

import (
	"context"
	"testing"
)

func TestSetupNoEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), "squishd", "")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestTracerReturnsUsableTracer(t *testing.T) {
	tr := Tracer("github.com/queer/squish/telemetry/test")
	_, span := tr.Start(context.Background(), "unit-test-span")
	defer span.End()
	if span == nil {
		t.Fatalf("span is nil")
	}
}
