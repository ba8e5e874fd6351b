package fusion

import (
	"math"

	"github.com/zero-day-ai/verdict/indicator"
	"github.com/zero-day-ai/verdict/record"
)

// Engine fuses canonical records under a fixed policy.
type Engine struct {
	policy Policy
}

// NewEngine validates p and returns an engine bound to a private copy of it.
func NewEngine(p Policy) (*Engine, error) {
	return NewEngineWithVocabulary(p, indicator.DefaultPositive)
}

// NewEngineWithVocabulary is NewEngine for deployments that configure their
// own positive vocabulary; override indicators are checked against it.
func NewEngineWithVocabulary(p Policy, positive indicator.Vocabulary) (*Engine, error) {
	if err := p.ValidateAgainst(positive); err != nil {
		return nil, err
	}
	return &Engine{policy: p.clone()}, nil
}

// Default returns an engine using DefaultPolicy.
func Default() *Engine {
	return &Engine{policy: DefaultPolicy()}
}

// Policy returns a copy of the engine's policy.
func (e *Engine) Policy() Policy {
	if e == nil {
		return DefaultPolicy()
	}
	return e.policy.clone()
}

// Fuse combines the three records of one artifact into a decision. It is
// total: any combination of records, including ones that break the record
// contract, yields a well-formed decision.
func (e *Engine) Fuse(content, reference, metadata record.Record) Decision {
	p := e.active()
	slots := [3]record.Record{content, reference, metadata}

	if p.overrides(metadata) {
		return override(p, slots)
	}
	return consensus(p, slots)
}

// FuseRecords places each record in the slot named by its own role and calls
// Fuse. The first record for a role wins; records with an unknown role are
// ignored; absent roles are filled with a safe default.
func (e *Engine) FuseRecords(records ...record.Record) Decision {
	var slots [3]record.Record
	var filled [3]bool

	for _, r := range records {
		i := slotOf(r.Role)
		if i < 0 || filled[i] {
			continue
		}
		slots[i] = r
		filled[i] = true
	}
	for i, role := range record.AllRoles() {
		if !filled[i] {
			slots[i] = record.Unsure(role, "no record supplied for role")
		}
	}

	return e.Fuse(slots[0], slots[1], slots[2])
}

// active returns the policy to fuse with; a nil engine uses the defaults.
func (e *Engine) active() Policy {
	if e == nil {
		return DefaultPolicy()
	}
	return e.policy
}

// overrides reports whether the metadata record alone decides the artifact.
func (p Policy) overrides(metadata record.Record) bool {
	if p.Weight(record.RoleMetadata) <= 0 {
		return false
	}
	if metadata.Verdict != record.VerdictMalicious {
		return false
	}
	if confidence(metadata) < p.OverrideConfidence {
		return false
	}
	return metadata.PositiveIndicators.Intersects(p.OverrideIndicators)
}

func override(p Policy, slots [3]record.Record) Decision {
	if p.OverrideMergesAll {
		d := merge(slots)
		d.Verdict = record.VerdictMalicious
		d.Score = 1.0
		d.Rule = RuleOverride
		return d
	}

	metadata := slots[2]
	return Decision{
		Verdict:            record.VerdictMalicious,
		Score:              1.0,
		PositiveIndicators: metadata.PositiveIndicators,
		NegativeIndicators: metadata.NegativeIndicators,
		Evidence:           append([]record.EvidenceItem{}, metadata.Evidence...),
		Rule:               RuleOverride,
	}
}

func consensus(p Policy, slots [3]record.Record) Decision {
	var weighted, total float64
	for i, role := range record.AllRoles() {
		w := p.Weight(role)
		if w <= 0 {
			continue
		}
		r := slots[i]
		weighted += r.Verdict.Polarity() * confidence(r) * w
		total += w
	}

	var score float64
	if total > 0 {
		score = weighted / total
	}

	d := merge(slots)
	d.Rule = RuleConsensus
	d.Score = round3(score)
	switch {
	case score > p.MaliciousThreshold:
		d.Verdict = record.VerdictMalicious
	case score < p.BenignThreshold:
		d.Verdict = record.VerdictBenign
	default:
		d.Verdict = record.VerdictUnsure
	}
	return d
}

// merge unions indicators and concatenates evidence across all three slots.
func merge(slots [3]record.Record) Decision {
	var evidence []record.EvidenceItem
	for _, r := range slots {
		evidence = append(evidence, r.Evidence...)
	}
	if evidence == nil {
		evidence = []record.EvidenceItem{}
	}

	return Decision{
		PositiveIndicators: slots[0].PositiveIndicators.Union(
			slots[1].PositiveIndicators, slots[2].PositiveIndicators),
		NegativeIndicators: slots[0].NegativeIndicators.Union(
			slots[1].NegativeIndicators, slots[2].NegativeIndicators),
		Evidence: evidence,
	}
}

// confidence reads a record's confidence, treating values outside [0, 1]
// and NaN as 0.
func confidence(r record.Record) float64 {
	c := r.Confidence
	if math.IsNaN(c) || c < 0 || c > 1 {
		return 0
	}
	return c
}

func slotOf(role record.Role) int {
	for i, r := range record.AllRoles() {
		if r == role {
			return i
		}
	}
	return -1
}

// round3 rounds half away from zero to three decimals and folds -0 into 0.
func round3(f float64) float64 {
	r := math.Round(f*1000) / 1000
	if r == 0 {
		return 0
	}
	return r
}
