package fusion

import (
	"errors"
	"fmt"
	"math"

	"github.com/zero-day-ai/verdict"
	"github.com/zero-day-ai/verdict/indicator"
	"github.com/zero-day-ai/verdict/record"
)

// Policy holds every tunable of the fusion rules.
type Policy struct {
	// Weights is the relative consensus weight per role. Roles with weight 0
	// are excluded from consensus. A zero metadata weight also disables the
	// override rule.
	Weights map[record.Role]float64

	// OverrideConfidence is the minimum metadata confidence (inclusive) for
	// the override rule.
	OverrideConfidence float64

	// OverrideIndicators are the metadata tags that make the override fire.
	OverrideIndicators indicator.Set

	// MaliciousThreshold: a consensus score strictly above it is malicious.
	MaliciousThreshold float64

	// BenignThreshold: a consensus score strictly below it is benign.
	BenignThreshold float64

	// OverrideMergesAll makes an override decision carry the union of all
	// three records' indicators and evidence instead of only the metadata
	// record's.
	OverrideMergesAll bool
}

// Default policy values.
const (
	DefaultContentWeight      = 0.4
	DefaultReferenceWeight    = 0.4
	DefaultMetadataWeight     = 0.2
	DefaultOverrideConfidence = 0.7
	DefaultMaliciousThreshold = 0.3
	DefaultBenignThreshold    = -0.3
)

// DefaultPolicy returns the standard weights and thresholds.
func DefaultPolicy() Policy {
	return Policy{
		Weights: map[record.Role]float64{
			record.RoleContent:   DefaultContentWeight,
			record.RoleReference: DefaultReferenceWeight,
			record.RoleMetadata:  DefaultMetadataWeight,
		},
		OverrideConfidence: DefaultOverrideConfidence,
		OverrideIndicators: indicator.HardMetadata,
		MaliciousThreshold: DefaultMaliciousThreshold,
		BenignThreshold:    DefaultBenignThreshold,
	}
}

// Weight returns the configured weight of role, or 0.
func (p Policy) Weight(role record.Role) float64 {
	return p.Weights[role]
}

// Validate checks that the policy is usable with the built-in positive
// vocabulary.
func (p Policy) Validate() error {
	return p.ValidateAgainst(indicator.DefaultPositive)
}

// ValidateAgainst checks that the policy is usable and that every override
// indicator is recognized by positive.
func (p Policy) ValidateAgainst(positive indicator.Vocabulary) error {
	var errs []error

	for role, w := range p.Weights {
		if !role.IsValid() {
			errs = append(errs, fmt.Errorf("weight for unknown role %q", role))
			continue
		}
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			errs = append(errs, fmt.Errorf("weight for %s must be a finite non-negative number, got %v", role, w))
		}
	}

	if !finite(p.OverrideConfidence) || p.OverrideConfidence < 0 || p.OverrideConfidence > 1 {
		errs = append(errs, fmt.Errorf("override confidence must be within [0, 1], got %v", p.OverrideConfidence))
	}
	if !finite(p.MaliciousThreshold) {
		errs = append(errs, fmt.Errorf("malicious threshold must be finite, got %v", p.MaliciousThreshold))
	}
	if !finite(p.BenignThreshold) {
		errs = append(errs, fmt.Errorf("benign threshold must be finite, got %v", p.BenignThreshold))
	}
	if finite(p.MaliciousThreshold) && finite(p.BenignThreshold) && p.BenignThreshold > p.MaliciousThreshold {
		errs = append(errs, fmt.Errorf("benign threshold %v exceeds malicious threshold %v", p.BenignThreshold, p.MaliciousThreshold))
	}

	if !positive.Covers(p.OverrideIndicators) {
		var unknown []string
		for _, t := range p.OverrideIndicators.Tags() {
			if !positive.Contains(t) {
				unknown = append(unknown, string(t))
			}
		}
		errs = append(errs, fmt.Errorf("override indicators not in positive vocabulary: %v", unknown))
	}

	if len(errs) > 0 {
		return verdict.NewConfigurationError("fusion.Policy.Validate",
			fmt.Errorf("%w: %w", verdict.ErrInvalidConfig, errors.Join(errs...)))
	}
	return nil
}

// clone copies the weights map so the engine never shares it with callers.
func (p Policy) clone() Policy {
	weights := make(map[record.Role]float64, len(p.Weights))
	for role, w := range p.Weights {
		weights[role] = w
	}
	p.Weights = weights
	return p
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
