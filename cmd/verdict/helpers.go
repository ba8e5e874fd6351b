package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/zero-day-ai/verdict/analyzer"
	"github.com/zero-day-ai/verdict/config"
	"github.com/zero-day-ai/verdict/llm"
	"github.com/zero-day-ai/verdict/pipeline"
	"github.com/zero-day-ai/verdict/queue"
)

// readInput reads path, or stdin when path is "" or "-".
func readInput(in io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// rawOutput returns the analyzer output in data. A JSON document is passed
// through as-is, so a top-level array or string is rejected as not an
// object. Other text is searched for an embedded object; text that holds
// none is passed through so the normalizer records why it was dropped.
func rawOutput(data []byte) any {
	if trimmed := bytes.TrimSpace(data); json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	if obj, err := llm.ExtractJSONObject(string(data)); err == nil {
		return obj
	}
	return json.RawMessage(data)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// buildPipeline wires the Ollama-backed analyzers selected by cfg into a
// pipeline.
func buildPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, error) {
	engine, err := cfg.Engine()
	if err != nil {
		return nil, err
	}
	normalizer, err := cfg.Normalizer()
	if err != nil {
		return nil, err
	}

	timeout := cfg.Analyzers.GetTimeout()
	client := llm.NewOllama(llm.OllamaOptions{
		BaseURL: cfg.Analyzers.GetBaseURL(),
		Model:   cfg.Analyzers.GetModel(),
		Timeout: timeout,
		Logger:  logger,
	})

	opts := []analyzer.Option{analyzer.WithLogger(logger)}

	var analyzers []analyzer.Analyzer
	switch mode := cfg.Analyzers.GetMode(); mode {
	case config.ModeUnified:
		u, err := analyzer.NewUnified(client, opts...)
		if err != nil {
			return nil, err
		}
		analyzers = u.Analyzers()
	case config.ModePerRole:
		analyzers, err = analyzer.PerRole(client, opts...)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown analyzer mode %q", mode)
	}

	return pipeline.New(engine, normalizer, analyzers,
		pipeline.WithTimeout(timeout),
		pipeline.WithLogger(logger),
	)
}

func connectQueue(cfg *config.Config) (*queue.RedisClient, error) {
	client, err := queue.NewRedisClient(queue.RedisOptions{URL: cfg.Worker.GetRedisURL()})
	if err != nil {
		return nil, fmt.Errorf("connect queue: %w", err)
	}
	return client, nil
}
