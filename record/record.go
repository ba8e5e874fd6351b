package record

import (
	"encoding/json"

	"github.com/zero-day-ai/verdict/indicator"
)

// Wire keys of a raw analyzer object and of a Record's JSON form.
const (
	KeyAgent              = "agent"
	KeyVerdict            = "verdict"
	KeyConfidence         = "confidence"
	KeyPositiveIndicators = "positive_indicators"
	KeyNegativeIndicators = "negative_indicators"
	KeyEvidence           = "evidence"
	KeyRationale          = "rationale"
	KeyNotes              = "notes"
)

// RequiredKeys returns every key a raw analyzer object must carry.
// Output missing any of them is discarded as a whole.
func RequiredKeys() []string {
	return []string{
		KeyAgent,
		KeyVerdict,
		KeyConfidence,
		KeyPositiveIndicators,
		KeyNegativeIndicators,
		KeyEvidence,
		KeyRationale,
		KeyNotes,
	}
}

// Record is the canonical verdict record every analyzer output is normalized
// into. Records are values; neither the normalizer nor the fusion engine
// modifies one after it is returned.
type Record struct {
	// Role is the analyzer identity, always set by the normalizer.
	Role Role `json:"agent"`

	// Verdict is the analyzer's decision.
	Verdict Verdict `json:"verdict"`

	// Confidence is within [0.0, 1.0].
	Confidence float64 `json:"confidence"`

	// PositiveIndicators holds recognized phishing-style tags.
	PositiveIndicators indicator.Set `json:"positive_indicators"`

	// NegativeIndicators holds recognized benign-style tags.
	NegativeIndicators indicator.Set `json:"negative_indicators"`

	// Evidence is passed through from the analyzer in its original order.
	Evidence []EvidenceItem `json:"evidence"`

	// Rationale is the analyzer's summary, or the reason its output was discarded.
	Rationale string `json:"rationale"`

	// Notes carries free-text caveats.
	Notes string `json:"notes"`
}

// Unsure returns the safe-default record for role: unsure, zero confidence,
// no indicators, no evidence, with reason recorded as the rationale.
func Unsure(role Role, reason string) Record {
	return Record{
		Role:      role,
		Verdict:   VerdictUnsure,
		Evidence:  []EvidenceItem{},
		Rationale: reason,
	}
}

// MarshalJSON encodes every field; evidence is always an array.
func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	p := plain(r)
	if p.Evidence == nil {
		p.Evidence = []EvidenceItem{}
	}
	return json.Marshal(p)
}

// Wire returns the record in raw analyzer-object form. Normalizing the result
// for the same role reproduces the record.
func (r Record) Wire() map[string]any {
	evidence := make([]any, len(r.Evidence))
	for i, e := range r.Evidence {
		evidence[i] = e.Value()
	}
	return map[string]any{
		KeyAgent:              string(r.Role),
		KeyVerdict:            string(r.Verdict),
		KeyConfidence:         r.Confidence,
		KeyPositiveIndicators: r.PositiveIndicators.Strings(),
		KeyNegativeIndicators: r.NegativeIndicators.Strings(),
		KeyEvidence:           evidence,
		KeyRationale:          r.Rationale,
		KeyNotes:              r.Notes,
	}
}

// IsUnsure reports whether the record commits to neither malicious nor benign.
func (r Record) IsUnsure() bool {
	return r.Verdict != VerdictMalicious && r.Verdict != VerdictBenign
}
