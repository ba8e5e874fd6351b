package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/zero-day-ai/verdict"
	"github.com/zero-day-ai/verdict/record"
)

// Artifact is one item under analysis, already split into the views the
// analyzers consume. URL discovery happens before this point.
type Artifact struct {
	// Subject line.
	Subject string `json:"subject"`

	// Body text.
	Body string `json:"body"`

	// URLs referenced by the artifact.
	URLs []string `json:"urls"`

	// Headers is the raw header block, if any.
	Headers string `json:"headers"`
}

// Fingerprint identifies the artifact's content. Equal artifacts share a
// fingerprint.
func (a Artifact) Fingerprint() string {
	h := sha256.New()
	for _, part := range []string{a.Subject, a.Body, strings.Join(a.URLs, "\n"), a.Headers} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Analyzer inspects the view of an artifact that belongs to its role.
type Analyzer interface {
	// Role returns the view this analyzer is responsible for.
	Role() record.Role

	// Analyze returns the raw analyzer output. The value is untrusted and
	// is expected to be a JSON-like object.
	Analyze(ctx context.Context, a Artifact) (any, error)
}

// Func adapts a function to the Analyzer interface.
type Func struct {
	role record.Role
	fn   func(ctx context.Context, a Artifact) (any, error)
}

// NewFunc returns an analyzer for role backed by fn.
func NewFunc(role record.Role, fn func(ctx context.Context, a Artifact) (any, error)) *Func {
	return &Func{role: role, fn: fn}
}

// Static returns an analyzer for role that always returns out.
func Static(role record.Role, out any) *Func {
	return NewFunc(role, func(context.Context, Artifact) (any, error) {
		return out, nil
	})
}

// Role returns the analyzer's role.
func (f *Func) Role() record.Role {
	return f.role
}

// Analyze calls the wrapped function.
func (f *Func) Analyze(ctx context.Context, a Artifact) (any, error) {
	if f.fn == nil {
		return nil, failed("analyzer.Func.Analyze", errors.New("no function configured"))
	}
	return f.fn(ctx, a)
}

// failed wraps err as an analyzer failure, keeping the kind of an
// underlying *verdict.Error.
func failed(op string, err error) error {
	kind := verdict.KindInternal
	var vErr *verdict.Error
	if errors.As(err, &vErr) {
		kind = vErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		kind = verdict.KindTimeout
	}
	return &verdict.Error{
		Op:   op,
		Kind: kind,
		Err:  fmt.Errorf("%w: %w", verdict.ErrAnalyzerFailed, err),
	}
}
