package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/zero-day-ai/verdict/fusion"
	"github.com/zero-day-ai/verdict/record"
)

// instrumentationName names the tracer and meter.
const instrumentationName = "github.com/zero-day-ai/verdict/pipeline"

// metrics holds the instruments recorded per run.
type metrics struct {
	// decisions counts fused decisions by verdict and rule
	decisions metric.Int64Counter

	// score records fused scores (-1.0 to 1.0)
	score metric.Float64Histogram

	// failures counts analyzer errors by role
	failures metric.Int64Counter

	// discards counts analyzer outputs replaced by the safe default
	discards metric.Int64Counter

	// duration records run duration in milliseconds
	duration metric.Float64Histogram
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	m := &metrics{}
	var err error

	m.decisions, err = meter.Int64Counter(
		"verdict.decisions",
		metric.WithDescription("Number of fused decisions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create decisions counter: %w", err)
	}

	m.score, err = meter.Float64Histogram(
		"verdict.score",
		metric.WithDescription("Fused score from -1.0 (benign) to 1.0 (malicious)"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create score histogram: %w", err)
	}

	m.failures, err = meter.Int64Counter(
		"verdict.analyzer.failures",
		metric.WithDescription("Number of analyzer calls that returned an error"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create failures counter: %w", err)
	}

	m.discards, err = meter.Int64Counter(
		"verdict.analyzer.discards",
		metric.WithDescription("Number of analyzer outputs discarded by the normalizer"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create discards counter: %w", err)
	}

	m.duration, err = meter.Float64Histogram(
		"verdict.pipeline.duration",
		metric.WithDescription("Pipeline run duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	return m, nil
}

func (m *metrics) recordDecision(ctx context.Context, d fusion.Decision, elapsed time.Duration) {
	opts := metric.WithAttributes(
		attribute.String("verdict", d.Verdict.String()),
		attribute.String("rule", d.Rule.String()),
	)
	m.decisions.Add(ctx, 1, opts)
	m.score.Record(ctx, d.Score, opts)
	m.duration.Record(ctx, float64(elapsed.Milliseconds()))
}

func (m *metrics) recordFailure(ctx context.Context, role record.Role) {
	m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("role", role.String())))
}

func (m *metrics) recordDiscard(ctx context.Context, role record.Role) {
	m.discards.Add(ctx, 1, metric.WithAttributes(attribute.String("role", role.String())))
}
