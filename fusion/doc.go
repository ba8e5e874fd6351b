// Package fusion combines the three canonical records of one artifact into a
// single decision.
//
// Fusion runs two rules in order. The override rule lets a confident metadata
// verdict backed by a protocol-verifiable indicator (SPF, DKIM, DMARC failure,
// Reply-To mismatch) decide the artifact outright. Otherwise a weighted
// consensus maps each record onto a signed axis (malicious +1, unsure 0,
// benign -1), scales by confidence and role weight, and thresholds the
// normalized sum with a dead zone around zero that resolves to unsure.
//
// An Engine is a pure function of its Policy: no I/O, no shared mutable
// state, no blocking. It is safe for concurrent use.
//
//	engine, err := fusion.NewEngine(fusion.DefaultPolicy())
//	if err != nil {
//		return err
//	}
//	decision := engine.Fuse(content, reference, metadata)
package fusion
