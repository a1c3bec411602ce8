package telemetry

import (
	"context"
	"testing"
)

func TestNewMetrics(t *testing.T) {
	m, err := NewMetrics("cpu", 0, 1)
	if err != nil {
		t.Fatalf("NewMetrics error: %v", err)
	}
	ctx := context.Background()
	m.PoemProcessed(ctx)
	m.PairEmitted(ctx)
	m.PairUnscorable(ctx)
	m.KernelCall(ctx)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.PoemProcessed(ctx)
	m.PairEmitted(ctx)
	m.PairUnscorable(ctx)
	m.KernelCall(ctx)
}
