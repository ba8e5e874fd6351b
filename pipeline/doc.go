// Package pipeline runs every analyzer for an artifact concurrently,
// normalizes each output independently and fuses the records into a
// decision.
//
// A Run never fails. An analyzer that errors, panics, times out or is not
// configured contributes a safe-default record for its role, so the fused
// decision is always well-formed.
//
//	p, err := pipeline.New(engine, normalizer, analyzers,
//		pipeline.WithTimeout(3*time.Minute),
//		pipeline.WithLogger(logger),
//	)
//	result := p.Run(ctx, artifact)
package pipeline
