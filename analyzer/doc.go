// Package analyzer defines the collaborators that look at one view of an
// artifact and return raw, untrusted verdict output.
//
// Analyzers never validate what they return. Their output is handed to a
// record.Normalizer, which is the trust boundary. An Analyzer that fails
// returns an error; the pipeline collapses that into a safe default record.
//
// Three implementations are provided:
//
//   - LLM prompts a language model with one role's view and indicators.
//   - Unified asks a language model for all three views in one completion
//     and hands each role its own sub-object.
//   - Func wraps a plain function, for tests and static inputs.
package analyzer
