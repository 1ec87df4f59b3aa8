package telemetry

import (
	"context"
	"testing"
)

func TestNoopProvider_StartIterationAndRecordKill(t *testing.T) {
	p := NewNoop()
	ctx, span := p.StartIteration(context.Background())
	if ctx == nil {
		t.Fatal("expected non-nil context")
	}
	RecordKill(span, 123, "victim", 4096, 0.75)
	span.End()

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown on noop provider should succeed, got %v", err)
	}
}
