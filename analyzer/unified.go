package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/zero-day-ai/verdict"
	"github.com/zero-day-ai/verdict/llm"
	"github.com/zero-day-ai/verdict/record"
)

// Unified asks the model for every view in a single completion. Each role's
// analyzer returned by Analyzers reads its own sub-object.
//
// Concurrent analyzers for the same artifact share one in-flight call. A
// finished completion is reused only inside the run scope installed by
// WithRunScope, so separate runs never mix views from different completions
// and a failed completion is never served again.
type Unified struct {
	client llm.Client
	system string
	opts   options

	group    singleflight.Group
	inFlight atomic.Int32
}

// runScope holds the successful unified completions of one run.
type runScope struct {
	mu      sync.Mutex
	results map[string]map[string]any
}

type runScopeKey struct{}

// WithRunScope returns a context whose analyzers belong to one run. Unified
// views called with it reuse a successful completion for the same artifact
// instead of asking the model again. The scope ends with the context.
func WithRunScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, runScopeKey{}, &runScope{results: make(map[string]map[string]any)})
}

func scopeFrom(ctx context.Context) *runScope {
	s, _ := ctx.Value(runScopeKey{}).(*runScope)
	return s
}

func (s *runScope) get(key string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.results[key]
	return out, ok
}

func (s *runScope) put(key string, out map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[key] = out
}

// NewUnified creates a unified analyzer.
func NewUnified(client llm.Client, opts ...Option) (*Unified, error) {
	if client == nil {
		return nil, verdict.NewValidationError("analyzer.NewUnified", errors.New("nil llm client"))
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With("analyzer", "unified")

	return &Unified{
		client: client,
		system: UnifiedSystemPrompt(),
		opts:   o,
	}, nil
}

// Analyzers returns one analyzer per role, in priority order.
func (u *Unified) Analyzers() []Analyzer {
	roles := record.AllRoles()
	out := make([]Analyzer, len(roles))
	for i, role := range roles {
		out[i] = &unifiedView{parent: u, role: role}
	}
	return out
}

// InFlight returns the number of model calls currently running.
func (u *Unified) InFlight() int {
	return int(u.inFlight.Load())
}

func (u *Unified) result(ctx context.Context, a Artifact) (map[string]any, error) {
	key := a.Fingerprint()
	scope := scopeFrom(ctx)
	if scope != nil {
		if out, ok := scope.get(key); ok {
			return out, nil
		}
		key = fmt.Sprintf("%p/%s", scope, key)
	}

	v, err, _ := u.group.Do(key, func() (any, error) {
		if scope != nil {
			if out, ok := scope.get(a.Fingerprint()); ok {
				return out, nil
			}
		}
		u.inFlight.Add(1)
		defer u.inFlight.Add(-1)

		out, err := u.opts.complete(ctx, u.client, "analyzer.Unified.Analyze", "unified",
			u.system, UnifiedUserPrompt(a, u.opts.maxBodyChars))
		if err != nil {
			u.opts.logger.Debug("analyzer call failed", "error", err)
			return nil, err
		}
		if scope != nil {
			scope.put(a.Fingerprint(), out)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

type unifiedView struct {
	parent *Unified
	role   record.Role
}

func (v *unifiedView) Role() record.Role {
	return v.role
}

// Analyze returns the role's sub-object of the shared completion. A missing
// sub-object yields an empty object, which the normalizer rejects as
// incomplete.
func (v *unifiedView) Analyze(ctx context.Context, a Artifact) (any, error) {
	out, err := v.parent.result(ctx, a)
	if err != nil {
		return nil, err
	}
	sub, ok := out[v.role.String()]
	if !ok {
		return map[string]any{}, nil
	}
	return sub, nil
}
