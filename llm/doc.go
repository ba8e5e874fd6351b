// Package llm provides the completion types and clients analyzers use to
// talk to a language model.
//
// # Completion Requests
//
// CompletionRequest represents a request to an LLM for text generation.
// Use functional options to configure the request:
//
//	req := llm.NewCompletionRequest(
//	    []llm.Message{llm.SystemMessage(prompt), llm.UserMessage(view)},
//	    llm.WithTemperature(0),
//	    llm.WithJSONFormat(),
//	)
//
// # Clients
//
// Client is the single method every backend implements. Ollama talks to a
// local Ollama server over its /api/generate endpoint; ClientFunc adapts a
// plain function, which is what tests use.
//
// # Output Extraction
//
// Models frequently wrap JSON in prose. ExtractJSONObject recovers the
// outermost object so the result can be handed to a record.Normalizer,
// which performs all validation.
//
// # Token Tracking
//
// UsageTracker accumulates token usage per analyzer role:
//
//	tracker := llm.NewUsageTracker()
//	tracker.Add("content", resp.Usage)
//	fmt.Println(tracker.Total().TotalTokens)
package llm
