package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zero-day-ai/verdict"
)

// Ollama defaults.
const (
	DefaultOllamaURL     = "http://localhost:11434"
	DefaultOllamaModel   = "llama3"
	DefaultOllamaTimeout = 180 * time.Second
)

// maxErrorBody bounds how much of a failed response body is kept in an error.
const maxErrorBody = 512

// OllamaOptions configures an Ollama client.
type OllamaOptions struct {
	// BaseURL of the server. Default: http://localhost:11434
	BaseURL string

	// Model used when a request does not name one. Default: llama3
	Model string

	// Timeout bounds each request. Default: 180s
	Timeout time.Duration

	// HTTPClient replaces the default client. Its Timeout is left untouched.
	HTTPClient *http.Client

	// Logger receives debug output. Default: slog.Default()
	Logger *slog.Logger
}

// Ollama calls the /api/generate endpoint of an Ollama server.
// It is safe for concurrent use.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

// ollamaRequest is the /api/generate payload.
type ollamaRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system,omitempty"`
	Prompt  string         `json:"prompt"`
	Format  string         `json:"format,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// ollamaResponse is the non-streaming /api/generate reply.
type ollamaResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

// NewOllama creates an Ollama client.
//
//	client := llm.NewOllama(llm.OllamaOptions{Model: "llama3"})
//	resp, err := client.Complete(ctx, llm.NewCompletionRequest(messages, llm.WithJSONFormat()))
func NewOllama(opts OllamaOptions) *Ollama {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	model := opts.Model
	if model == "" {
		model = DefaultOllamaModel
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultOllamaTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Ollama{
		baseURL: baseURL,
		model:   model,
		client:  client,
		logger:  logger,
	}
}

// Model returns the default model name.
func (o *Ollama) Model() string {
	return o.model
}

// Complete sends req as a single non-streaming generate call. System
// messages become the system prompt and user messages the prompt.
func (o *Ollama) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	const op = "llm.Ollama.Complete"

	if req == nil {
		return nil, verdict.NewValidationError(op, errors.New("nil completion request"))
	}

	payload := ollamaRequest{
		Model:  o.model,
		System: req.Text(RoleSystem),
		Prompt: req.Text(RoleUser),
		Stream: false,
	}
	if req.Model != "" {
		payload.Model = req.Model
	}
	if req.JSONFormat {
		payload.Format = "json"
	}
	if req.Temperature != nil || req.MaxTokens != nil {
		payload.Options = make(map[string]any, 2)
		if req.Temperature != nil {
			payload.Options["temperature"] = *req.Temperature
		}
		if req.MaxTokens != nil {
			payload.Options["num_predict"] = *req.MaxTokens
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, verdict.NewInternalError(op, fmt.Errorf("failed to marshal request: %w", err))
	}

	url := o.baseURL + "/api/generate"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, verdict.NewInternalError(op, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return nil, verdict.NewTimeoutError(op, fmt.Errorf("failed to send request: %w", err)).
				WithContext(map[string]any{"model": payload.Model})
		}
		return nil, verdict.NewNetworkError(op, fmt.Errorf("failed to send request: %w", err)).
			WithContext(map[string]any{"model": payload.Model})
	}
	defer verdict.CloseWithLog(resp.Body, o.logger, "ollama HTTP response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, verdict.NewNetworkError(op,
			fmt.Errorf("ollama API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))).
			WithContext(map[string]any{"model": payload.Model, "status": resp.StatusCode})
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, verdict.NewValidationError(op,
			fmt.Errorf("%w: failed to decode response: %w", verdict.ErrMalformedOutput, err))
	}
	if out.Error != "" {
		return nil, verdict.NewNetworkError(op, fmt.Errorf("ollama error: %s", out.Error))
	}

	o.logger.Debug("ollama completion",
		"model", out.Model,
		"duration", time.Since(start),
		"prompt_tokens", out.PromptEvalCount,
		"output_tokens", out.EvalCount)

	finish := out.DoneReason
	if finish == "" && out.Done {
		finish = "stop"
	}
	model := out.Model
	if model == "" {
		model = payload.Model
	}

	return &CompletionResponse{
		Content:      out.Response,
		Model:        model,
		FinishReason: finish,
		Usage: TokenUsage{
			InputTokens:  out.PromptEvalCount,
			OutputTokens: out.EvalCount,
			TotalTokens:  out.PromptEvalCount + out.EvalCount,
		},
	}, nil
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
