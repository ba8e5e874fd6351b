package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/zero-day-ai/verdict"
	"github.com/zero-day-ai/verdict/analyzer"
	"github.com/zero-day-ai/verdict/fusion"
	"github.com/zero-day-ai/verdict/record"
)

// Result is the outcome of one run.
type Result struct {
	// ID identifies the run.
	ID string

	// Records holds the canonical record of every role in priority order.
	Records []record.Record

	// Decision is the fused decision.
	Decision fusion.Decision

	// Duration is the wall time of the run.
	Duration time.Duration
}

// Record returns the record of role, if present.
func (r Result) Record(role record.Role) (record.Record, bool) {
	for _, rec := range r.Records {
		if rec.Role == role {
			return rec, true
		}
	}
	return record.Record{}, false
}

// MarshalJSON encodes the result with the duration in milliseconds.
func (r Result) MarshalJSON() ([]byte, error) {
	records := r.Records
	if records == nil {
		records = []record.Record{}
	}
	return json.Marshal(struct {
		ID         string          `json:"id"`
		Records    []record.Record `json:"records"`
		Decision   fusion.Decision `json:"decision"`
		DurationMS int64           `json:"duration_ms"`
	}{r.ID, records, r.Decision, r.Duration.Milliseconds()})
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTimeout bounds each analyzer call. 0 leaves calls bounded only by the
// run's context.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithTracer records a span per run and per analyzer call.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithMeterProvider records decision and analyzer metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(p *Pipeline) {
		if mp != nil {
			p.meterProvider = mp
		}
	}
}

// Pipeline ties analyzers, normalizer and fusion engine together.
// It is safe for concurrent use.
type Pipeline struct {
	engine     *fusion.Engine
	normalizer *record.Normalizer
	analyzers  map[record.Role]analyzer.Analyzer

	timeout       time.Duration
	logger        *slog.Logger
	tracer        trace.Tracer
	meterProvider metric.MeterProvider
	metrics       *metrics
}

// New creates a pipeline. A nil engine or normalizer uses the defaults.
// At most one analyzer per role is allowed; roles without an analyzer
// contribute a safe-default record.
func New(engine *fusion.Engine, normalizer *record.Normalizer, analyzers []analyzer.Analyzer, opts ...Option) (*Pipeline, error) {
	const op = "pipeline.New"

	if engine == nil {
		engine = fusion.Default()
	}
	if normalizer == nil {
		normalizer = record.NewNormalizer()
	}

	p := &Pipeline{
		engine:        engine,
		normalizer:    normalizer,
		analyzers:     make(map[record.Role]analyzer.Analyzer, len(analyzers)),
		logger:        slog.Default(),
		tracer:        tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meterProvider: metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(p)
	}

	for _, a := range analyzers {
		if a == nil {
			return nil, verdict.NewConfigurationError(op, fmt.Errorf("%w: nil analyzer", verdict.ErrInvalidConfig))
		}
		role := a.Role()
		if !role.IsValid() {
			return nil, verdict.NewConfigurationError(op, fmt.Errorf("%w: analyzer for unknown role %q", verdict.ErrInvalidConfig, role))
		}
		if _, dup := p.analyzers[role]; dup {
			return nil, verdict.NewConfigurationError(op, fmt.Errorf("%w: more than one analyzer for role %s", verdict.ErrInvalidConfig, role))
		}
		p.analyzers[role] = a
	}
	if p.timeout < 0 {
		return nil, verdict.NewConfigurationError(op, fmt.Errorf("%w: negative analyzer timeout", verdict.ErrInvalidConfig))
	}

	m, err := newMetrics(p.meterProvider.Meter(instrumentationName))
	if err != nil {
		return nil, verdict.NewInternalError(op, err)
	}
	p.metrics = m

	return p, nil
}

// Run analyzes a and returns the fused result. It never fails; cancelling
// ctx makes pending analyzers contribute safe defaults.
func (p *Pipeline) Run(ctx context.Context, a analyzer.Artifact) Result {
	start := time.Now()
	id := uuid.NewString()
	logger := p.logger.With("run_id", id)

	ctx, span := p.tracer.Start(ctx, "verdict.pipeline.run",
		trace.WithAttributes(attribute.String("run.id", id)))
	defer span.End()
	ctx = analyzer.WithRunScope(ctx)

	roles := record.AllRoles()
	records := make([]record.Record, len(roles))

	// Analyzer failures are folded into records, so the group never returns
	// an error and never cancels siblings.
	var g errgroup.Group
	for i, role := range roles {
		g.Go(func() error {
			records[i] = p.analyze(ctx, role, a, logger)
			return nil
		})
	}
	_ = g.Wait()

	decision := p.engine.Fuse(records[0], records[1], records[2])
	elapsed := time.Since(start)

	span.SetAttributes(
		attribute.String("verdict.decision", decision.Verdict.String()),
		attribute.String("verdict.rule", decision.Rule.String()),
		attribute.Float64("verdict.score", decision.Score),
	)
	span.SetStatus(codes.Ok, "")
	p.metrics.recordDecision(ctx, decision, elapsed)

	logger.Info("artifact fused",
		"verdict", decision.Verdict,
		"score", decision.Score,
		"rule", decision.Rule,
		"duration", elapsed)

	return Result{
		ID:       id,
		Records:  records,
		Decision: decision,
		Duration: elapsed,
	}
}

// analyze produces the canonical record for one role.
func (p *Pipeline) analyze(ctx context.Context, role record.Role, a analyzer.Artifact, logger *slog.Logger) (rec record.Record) {
	logger = logger.With("role", role.String())

	ctx, span := p.tracer.Start(ctx, "verdict.analyzer."+role.String(),
		trace.WithAttributes(attribute.String("analyzer.role", role.String())))
	defer span.End()

	an, ok := p.analyzers[role]
	if !ok {
		span.SetAttributes(attribute.Bool("analyzer.configured", false))
		return record.Unsure(role, "no analyzer configured")
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	raw, err := p.call(ctx, an, a)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analyzer failed")
		p.metrics.recordFailure(ctx, role)
		logger.Warn("analyzer failed", "error", err)
		return record.Unsure(role, "analyzer failed: "+err.Error())
	}

	rec, discarded := p.normalizer.NormalizeChecked(raw, role)
	span.SetAttributes(
		attribute.String("analyzer.verdict", rec.Verdict.String()),
		attribute.Float64("analyzer.confidence", rec.Confidence),
		attribute.Bool("analyzer.discarded", discarded),
	)
	if discarded {
		p.metrics.recordDiscard(ctx, role)
		logger.Warn("analyzer output discarded", "rationale", rec.Rationale)
	}
	return rec
}

// call invokes the analyzer, turning a panic into an error. It returns as
// soon as ctx is done, even if the analyzer ignores ctx.
func (p *Pipeline) call(ctx context.Context, an analyzer.Analyzer, a analyzer.Artifact) (any, error) {
	const op = "pipeline.call"

	type outcome struct {
		raw any
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: verdict.NewInternalError(op, fmt.Errorf("%w: panic: %v", verdict.ErrAnalyzerFailed, r))}
			}
		}()
		raw, err := an.Analyze(ctx, a)
		done <- outcome{raw: raw, err: err}
	}()

	select {
	case o := <-done:
		return o.raw, o.err
	case <-ctx.Done():
		return nil, verdict.NewTimeoutError(op, fmt.Errorf("%w: %w", verdict.ErrAnalyzerFailed, ctx.Err()))
	}
}
