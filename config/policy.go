package config

import (
	"fmt"

	"github.com/zero-day-ai/verdict/fusion"
	"github.com/zero-day-ai/verdict/indicator"
	"github.com/zero-day-ai/verdict/record"
)

// PolicyConfig tunes the fusion engine. Unset fields keep the defaults of
// fusion.DefaultPolicy.
type PolicyConfig struct {
	// Weights per role name. Listed roles replace the default weight; a
	// weight of 0 excludes the role from consensus.
	Weights map[string]float64 `yaml:"weights,omitempty"`

	// OverrideConfidence is the inclusive minimum metadata confidence for
	// the override rule.
	OverrideConfidence *float64 `yaml:"override_confidence,omitempty"`

	// OverrideIndicators replaces the default hard metadata tags.
	OverrideIndicators []string `yaml:"override_indicators,omitempty"`

	MaliciousThreshold *float64 `yaml:"malicious_threshold,omitempty"`
	BenignThreshold    *float64 `yaml:"benign_threshold,omitempty"`

	// OverrideMergesAll makes override decisions carry every record's
	// indicators and evidence.
	OverrideMergesAll bool `yaml:"override_merges_all,omitempty"`
}

// VocabularyConfig replaces the built-in indicator vocabularies.
type VocabularyConfig struct {
	Positive []string `yaml:"positive,omitempty"`
	Negative []string `yaml:"negative,omitempty"`
}

// FusionPolicy builds the fusion policy described by the policy section.
// It does not validate the result; Engine does.
func (c *Config) FusionPolicy() (fusion.Policy, error) {
	p := fusion.DefaultPolicy()
	pc := c.Policy
	if pc == nil {
		return p, nil
	}

	for name, w := range pc.Weights {
		role, err := record.ParseRole(name)
		if err != nil {
			return fusion.Policy{}, fmt.Errorf("policy.weights: %w", err)
		}
		p.Weights[role] = w
	}
	if pc.OverrideConfidence != nil {
		p.OverrideConfidence = *pc.OverrideConfidence
	}
	if pc.OverrideIndicators != nil {
		tags := make([]indicator.Tag, len(pc.OverrideIndicators))
		for i, name := range pc.OverrideIndicators {
			tags[i] = indicator.Tag(name)
		}
		p.OverrideIndicators = indicator.NewSet(tags...)
	}
	if pc.MaliciousThreshold != nil {
		p.MaliciousThreshold = *pc.MaliciousThreshold
	}
	if pc.BenignThreshold != nil {
		p.BenignThreshold = *pc.BenignThreshold
	}
	p.OverrideMergesAll = pc.OverrideMergesAll

	return p, nil
}

// Vocabularies returns the configured positive and negative vocabularies,
// falling back to the built-in ones for unset lists.
func (c *Config) Vocabularies() (positive, negative indicator.Vocabulary, err error) {
	positive, negative = indicator.DefaultPositive, indicator.DefaultNegative
	if c.Vocabulary == nil {
		return positive, negative, nil
	}
	if c.Vocabulary.Positive != nil {
		if positive, err = indicator.ParseVocabulary(c.Vocabulary.Positive); err != nil {
			return positive, negative, fmt.Errorf("vocabulary.positive: %w", err)
		}
	}
	if c.Vocabulary.Negative != nil {
		if negative, err = indicator.ParseVocabulary(c.Vocabulary.Negative); err != nil {
			return positive, negative, fmt.Errorf("vocabulary.negative: %w", err)
		}
	}
	return positive, negative, nil
}

// Engine returns a fusion engine for the configured policy, checking the
// override indicators against the configured positive vocabulary.
func (c *Config) Engine() (*fusion.Engine, error) {
	p, err := c.FusionPolicy()
	if err != nil {
		return nil, err
	}
	positive, _, err := c.Vocabularies()
	if err != nil {
		return nil, err
	}
	return fusion.NewEngineWithVocabulary(p, positive)
}

// Normalizer returns a normalizer using the configured vocabularies.
func (c *Config) Normalizer() (*record.Normalizer, error) {
	positive, negative, err := c.Vocabularies()
	if err != nil {
		return nil, err
	}
	return record.NewNormalizer(
		record.WithPositiveVocabulary(positive),
		record.WithNegativeVocabulary(negative),
	), nil
}
