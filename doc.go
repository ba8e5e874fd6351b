// Package verdict fuses the verdicts of independent phishing analyzers into
// one decision.
//
// Three analyzers look at a message from different views: content (subject
// and body), reference (URLs) and metadata (headers). Their untrusted output
// is normalized into canonical records, and the records are fused with a
// hard-indicator override followed by a weighted consensus.
//
// # Architecture
//
//   - indicator: closed tag vocabularies and tag sets
//   - record: canonical records and the total Normalizer
//   - fusion: Policy, Engine and Decision
//   - llm, analyzer: Ollama-backed analyzers producing raw output
//   - pipeline: concurrent analyzer fan-out, normalization and fusion
//   - queue, worker, serve: Redis work queue, consumer loop and gRPC health
//   - config: YAML configuration for all of the above
//
// # Getting Started
//
//	content := record.Normalize(rawContent, record.RoleContent)
//	reference := record.Normalize(rawReference, record.RoleReference)
//	metadata := record.Normalize(rawMetadata, record.RoleMetadata)
//
//	decision := fusion.Default().Fuse(content, reference, metadata)
//	fmt.Println(decision.Verdict, decision.Score, decision.Rule)
//
// # Errors
//
// The normalizer and the engine never fail. Adapters return *Error values
// that carry the failed operation and a kind (validation, configuration,
// network, timeout, internal) and wrap the sentinel errors of this package:
//
//	if errors.Is(err, verdict.ErrAnalyzerFailed) {
//		// the analyzer produced nothing; its record is the safe default
//	}
package verdict
