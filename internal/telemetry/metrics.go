// Package telemetry exposes run counters through the global OpenTelemetry
// meter. Without an installed SDK the counters are no-ops.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/jakobytes/elias-1848"

// Metrics holds the counters of a similarity run. A nil *Metrics records nothing.
type Metrics struct {
	PoemsProcessed  metric.Int64Counter
	PairsEmitted    metric.Int64Counter
	PairsUnscorable metric.Int64Counter
	KernelCalls     metric.Int64Counter

	attrs metric.MeasurementOption
}

// NewMetrics registers the counters, tagging every measurement with the
// kernel backend and the job shard.
func NewMetrics(backend string, jobID, jobs int) (*Metrics, error) {
	meter := otel.Meter(meterName)

	poems, err := meter.Int64Counter(
		"poemsim.poems.processed",
		metric.WithDescription("Left-hand poems scored against all later poems"),
	)
	if err != nil {
		return nil, err
	}
	pairs, err := meter.Int64Counter(
		"poemsim.pairs.emitted",
		metric.WithDescription("Poem pairs passing the threshold cascade"),
	)
	if err != nil {
		return nil, err
	}
	unscorable, err := meter.Int64Counter(
		"poemsim.pairs.unscorable",
		metric.WithDescription("Poem pairs skipped because they exceed the memory budget"),
	)
	if err != nil {
		return nil, err
	}
	calls, err := meter.Int64Counter(
		"poemsim.kernel.calls",
		metric.WithDescription("Pairwise kernel invocations"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		PoemsProcessed:  poems,
		PairsEmitted:    pairs,
		PairsUnscorable: unscorable,
		KernelCalls:     calls,
		attrs: metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.Int("job_id", jobID),
			attribute.Int("jobs", jobs),
		),
	}, nil
}

// PoemProcessed counts one finished left-hand poem.
func (m *Metrics) PoemProcessed(ctx context.Context) {
	if m == nil {
		return
	}
	m.PoemsProcessed.Add(ctx, 1, m.attrs)
}

// PairEmitted counts one kept pair.
func (m *Metrics) PairEmitted(ctx context.Context) {
	if m == nil {
		return
	}
	m.PairsEmitted.Add(ctx, 1, m.attrs)
}

// PairUnscorable counts one pair dropped for the budget.
func (m *Metrics) PairUnscorable(ctx context.Context) {
	if m == nil {
		return
	}
	m.PairsUnscorable.Add(ctx, 1, m.attrs)
}

// KernelCall counts one kernel invocation.
func (m *Metrics) KernelCall(ctx context.Context) {
	if m == nil {
		return
	}
	m.KernelCalls.Add(ctx, 1, m.attrs)
}
