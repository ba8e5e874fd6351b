package analyzer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/verdict"
	"github.com/zero-day-ai/verdict/indicator"
	"github.com/zero-day-ai/verdict/llm"
	"github.com/zero-day-ai/verdict/record"
)

var sample = Artifact{
	Subject: "Important: Verify your account immediately",
	Body:    "We detected unusual activity. Verify your password within 24 hours.",
	URLs:    []string{"https://secure-paypa1.com/login"},
	Headers: "Authentication-Results: spf=fail; dkim=fail",
}

// fakeClient records requests and returns a fixed completion.
type fakeClient struct {
	mu       sync.Mutex
	requests []*llm.CompletionRequest
	calls    atomic.Int32
	content  string
	err      error
}

func (f *fakeClient) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{
		Content: f.content,
		Usage:   llm.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}, nil
}

func (f *fakeClient) last() *llm.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

const contentOutput = `Sure! {"agent": "content", "verdict": "malicious", "confidence": 0.85,
 "positive_indicators": ["urgent_threat_or_deadline"], "negative_indicators": [],
 "evidence": [], "rationale": "deadline pressure", "notes": ""} Let me know.`

func TestFunc(t *testing.T) {
	a := NewFunc(record.RoleReference, func(ctx context.Context, art Artifact) (any, error) {
		return map[string]any{"urls": len(art.URLs)}, nil
	})
	assert.Equal(t, record.RoleReference, a.Role())

	out, err := a.Analyze(context.Background(), sample)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"urls": 1}, out)

	out, err = Static(record.RoleMetadata, "raw").Analyze(context.Background(), sample)
	require.NoError(t, err)
	assert.Equal(t, "raw", out)

	_, err = (&Func{role: record.RoleContent}).Analyze(context.Background(), sample)
	assert.ErrorIs(t, err, verdict.ErrAnalyzerFailed)
}

func TestArtifact_Fingerprint(t *testing.T) {
	same := sample
	same.URLs = append([]string(nil), sample.URLs...)
	assert.Equal(t, sample.Fingerprint(), same.Fingerprint())

	other := sample
	other.Headers = ""
	assert.NotEqual(t, sample.Fingerprint(), other.Fingerprint())

	// Field boundaries are part of the fingerprint.
	a := Artifact{Subject: "ab", Body: "c"}
	b := Artifact{Subject: "a", Body: "bc"}
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestLLM_Analyze(t *testing.T) {
	client := &fakeClient{content: contentOutput}
	tracker := llm.NewUsageTracker()
	a, err := NewLLM(record.RoleContent, client, WithModel("llama3.1"), WithTemperature(0), WithUsageTracker(tracker))
	require.NoError(t, err)

	out, err := a.Analyze(context.Background(), sample)
	require.NoError(t, err)

	obj, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "malicious", obj["verdict"])

	req := client.last()
	assert.True(t, req.JSONFormat)
	assert.Equal(t, "llama3.1", req.Model)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.0, *req.Temperature)
	assert.Equal(t, SystemPrompt(record.RoleContent), req.Text(llm.RoleSystem))

	user := req.Text(llm.RoleUser)
	assert.Contains(t, user, sample.Subject)
	assert.Contains(t, user, sample.Body)
	assert.NotContains(t, user, sample.URLs[0])
	assert.NotContains(t, user, "dkim=fail")

	assert.Equal(t, 15, tracker.ByRole("content").TotalTokens)

	rec := record.Normalize(out, a.Role())
	assert.Equal(t, record.VerdictMalicious, rec.Verdict)
	assert.Equal(t, 0.85, rec.Confidence)
	assert.True(t, rec.PositiveIndicators.Contains(indicator.UrgentThreatOrDeadline))
}

func TestLLM_ViewsAreIsolated(t *testing.T) {
	client := &fakeClient{content: "{}"}

	ref, err := NewLLM(record.RoleReference, client)
	require.NoError(t, err)
	_, err = ref.Analyze(context.Background(), sample)
	require.NoError(t, err)
	user := client.last().Text(llm.RoleUser)
	assert.Contains(t, user, sample.URLs[0])
	assert.NotContains(t, user, sample.Body)

	meta, err := NewLLM(record.RoleMetadata, client)
	require.NoError(t, err)
	_, err = meta.Analyze(context.Background(), Artifact{Subject: "x"})
	require.NoError(t, err)
	assert.Contains(t, client.last().Text(llm.RoleUser), "(no metadata provided)")
}

func TestLLM_Errors(t *testing.T) {
	t.Run("transport failure keeps kind", func(t *testing.T) {
		client := &fakeClient{err: verdict.NewNetworkError("llm.Ollama.Complete", errors.New("connection refused"))}
		a, err := NewLLM(record.RoleMetadata, client)
		require.NoError(t, err)

		_, err = a.Analyze(context.Background(), sample)
		require.Error(t, err)
		assert.ErrorIs(t, err, verdict.ErrAnalyzerFailed)
		assert.ErrorIs(t, err, &verdict.Error{Kind: verdict.KindNetwork, Op: "analyzer.LLM.Analyze"})
	})

	t.Run("deadline is a timeout", func(t *testing.T) {
		client := &fakeClient{err: context.DeadlineExceeded}
		a, err := NewLLM(record.RoleMetadata, client)
		require.NoError(t, err)

		_, err = a.Analyze(context.Background(), sample)
		assert.ErrorIs(t, err, &verdict.Error{Kind: verdict.KindTimeout})
	})

	t.Run("no json in completion", func(t *testing.T) {
		client := &fakeClient{content: "I refuse."}
		a, err := NewLLM(record.RoleContent, client)
		require.NoError(t, err)

		_, err = a.Analyze(context.Background(), sample)
		assert.ErrorIs(t, err, verdict.ErrAnalyzerFailed)
		assert.ErrorIs(t, err, verdict.ErrMalformedOutput)
	})
}

func TestNewLLM_Validation(t *testing.T) {
	_, err := NewLLM("attachment", &fakeClient{})
	assert.ErrorIs(t, err, &verdict.Error{Kind: verdict.KindValidation})

	_, err = NewLLM(record.RoleContent, nil)
	assert.ErrorIs(t, err, &verdict.Error{Kind: verdict.KindValidation})
}

func TestPerRole(t *testing.T) {
	analyzers, err := PerRole(&fakeClient{})
	require.NoError(t, err)
	require.Len(t, analyzers, 3)
	for i, role := range record.AllRoles() {
		assert.Equal(t, role, analyzers[i].Role())
	}
}

func TestSystemPrompt(t *testing.T) {
	content := SystemPrompt(record.RoleContent)
	assert.Contains(t, content, "CONTENT ANALYZER")
	assert.Contains(t, content, string(indicator.CredentialHarvesting))
	assert.NotContains(t, content, string(indicator.DKIMFail))
	assert.Contains(t, content, string(indicator.NoSensitiveDataRequested))
	for _, key := range record.RequiredKeys() {
		assert.Contains(t, content, `"`+key+`"`)
	}
	assert.Contains(t, content, `"agent": "content"`)

	assert.Contains(t, SystemPrompt(record.RoleMetadata), string(indicator.SPFFailOrSoftfail))
	assert.Empty(t, SystemPrompt("attachment"))
}

func TestUserPrompt(t *testing.T) {
	assert.Contains(t, UserPrompt(record.RoleReference, Artifact{URLs: []string{" ", ""}}, 0), "(no urls provided)")
	assert.Contains(t, UserPrompt(record.RoleMetadata, Artifact{Headers: "  \n"}, 0), "(no metadata provided)")

	long := Artifact{Body: strings.Repeat("é", 30)}
	prompt := UserPrompt(record.RoleContent, long, 10)
	assert.Contains(t, prompt, strings.Repeat("é", 10)+"\n\n[TRUNCATED]")
	assert.NotContains(t, prompt, strings.Repeat("é", 11))

	assert.NotContains(t, UserPrompt(record.RoleContent, long, 0), "[TRUNCATED]")
}

func TestUnifiedSystemPrompt(t *testing.T) {
	prompt := UnifiedSystemPrompt()
	assert.Contains(t, prompt, `"content", "reference", "metadata"`)
	assert.Contains(t, prompt, string(indicator.DKIMFail))
	assert.Contains(t, prompt, string(indicator.URLShortener))
}
