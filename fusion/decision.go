package fusion

import (
	"encoding/json"

	"github.com/zero-day-ai/verdict/indicator"
	"github.com/zero-day-ai/verdict/record"
)

// Rule names the fusion rule that produced a decision.
type Rule string

const (
	// RuleOverride means the metadata record decided the artifact alone.
	RuleOverride Rule = "override"

	// RuleConsensus means the weighted consensus decided the artifact.
	RuleConsensus Rule = "consensus"
)

// String returns the string representation of the rule.
func (r Rule) String() string {
	return string(r)
}

// Decision is the fused outcome for one artifact.
type Decision struct {
	// Verdict is the final decision.
	Verdict record.Verdict `json:"verdict"`

	// Score is within [-1.0, 1.0], rounded to three decimals. An override
	// decision always scores 1.0.
	Score float64 `json:"score"`

	// PositiveIndicators is the union of the contributing records' positive tags.
	PositiveIndicators indicator.Set `json:"positive_indicators"`

	// NegativeIndicators is the union of the contributing records' negative tags.
	NegativeIndicators indicator.Set `json:"negative_indicators"`

	// Evidence concatenates evidence in the order content, reference, metadata.
	Evidence []record.EvidenceItem `json:"evidence"`

	// Rule names the rule that produced the decision.
	Rule Rule `json:"rule"`
}

// MarshalJSON encodes every field; evidence is always an array.
func (d Decision) MarshalJSON() ([]byte, error) {
	type plain Decision
	p := plain(d)
	if p.Evidence == nil {
		p.Evidence = []record.EvidenceItem{}
	}
	return json.Marshal(p)
}
