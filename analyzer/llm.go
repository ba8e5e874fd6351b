package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zero-day-ai/verdict"
	"github.com/zero-day-ai/verdict/llm"
	"github.com/zero-day-ai/verdict/record"
)

// Option configures the LLM-backed analyzers.
type Option func(*options)

type options struct {
	model        string
	temperature  *float64
	maxBodyChars int
	tracker      *llm.UsageTracker
	logger       *slog.Logger
}

func defaultOptions() options {
	return options{
		maxBodyChars: DefaultMaxBodyChars,
		logger:       slog.Default(),
	}
}

// WithModel overrides the client's default model.
func WithModel(model string) Option {
	return func(o *options) {
		o.model = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *options) {
		o.temperature = &t
	}
}

// WithMaxBodyChars bounds the body text sent to the model. 0 disables the bound.
func WithMaxBodyChars(n int) Option {
	return func(o *options) {
		o.maxBodyChars = n
	}
}

// WithUsageTracker records token usage per role.
func WithUsageTracker(t *llm.UsageTracker) Option {
	return func(o *options) {
		o.tracker = t
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func (o options) request(system, user string) *llm.CompletionRequest {
	opts := []llm.CompletionOption{llm.WithJSONFormat()}
	if o.model != "" {
		opts = append(opts, llm.WithModel(o.model))
	}
	if o.temperature != nil {
		opts = append(opts, llm.WithTemperature(*o.temperature))
	}
	return llm.NewCompletionRequest(
		[]llm.Message{llm.SystemMessage(system), llm.UserMessage(user)},
		opts...,
	)
}

// complete runs one completion and extracts the JSON object from it.
func (o options) complete(ctx context.Context, client llm.Client, op, usageKey, system, user string) (map[string]any, error) {
	resp, err := client.Complete(ctx, o.request(system, user))
	if err != nil {
		return nil, failed(op, err)
	}
	if resp == nil {
		return nil, failed(op, errors.New("empty completion response"))
	}
	o.tracker.Add(usageKey, resp.Usage)

	obj, err := llm.ExtractJSONObject(resp.Content)
	if err != nil {
		return nil, failed(op, err)
	}
	return obj, nil
}

// LLM prompts a language model with one role's view of an artifact.
type LLM struct {
	role   record.Role
	client llm.Client
	system string
	opts   options
}

// NewLLM creates an analyzer for role.
func NewLLM(role record.Role, client llm.Client, opts ...Option) (*LLM, error) {
	if !role.IsValid() {
		return nil, verdict.NewValidationError("analyzer.NewLLM", fmt.Errorf("unknown analyzer role %q", role))
	}
	if client == nil {
		return nil, verdict.NewValidationError("analyzer.NewLLM", errors.New("nil llm client"))
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With("role", role.String())

	return &LLM{
		role:   role,
		client: client,
		system: SystemPrompt(role),
		opts:   o,
	}, nil
}

// PerRole creates one LLM analyzer per role, all sharing client.
func PerRole(client llm.Client, opts ...Option) ([]Analyzer, error) {
	var out []Analyzer
	for _, role := range record.AllRoles() {
		a, err := NewLLM(role, client, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Role returns the analyzer's role.
func (l *LLM) Role() record.Role {
	return l.role
}

// Analyze sends the role's view to the model and returns the decoded object.
func (l *LLM) Analyze(ctx context.Context, a Artifact) (any, error) {
	obj, err := l.opts.complete(ctx, l.client, "analyzer.LLM.Analyze", l.role.String(),
		l.system, UserPrompt(l.role, a, l.opts.maxBodyChars))
	if err != nil {
		l.opts.logger.Debug("analyzer call failed", "error", err)
		return nil, err
	}
	return obj, nil
}
