package record

import "fmt"

// Verdict is an analyzer's or the fused system's decision about an artifact.
type Verdict string

const (
	// VerdictMalicious means the artifact is judged malicious (phishing).
	VerdictMalicious Verdict = "malicious"

	// VerdictBenign means the artifact is judged legitimate.
	VerdictBenign Verdict = "benign"

	// VerdictUnsure is the non-committal decision; it is also the verdict of
	// every safe-default record.
	VerdictUnsure Verdict = "unsure"
)

var polarities = map[Verdict]float64{
	VerdictMalicious: 1.0,
	VerdictUnsure:    0.0,
	VerdictBenign:    -1.0,
}

// IsValid returns true if the verdict is in the closed set.
func (v Verdict) IsValid() bool {
	_, ok := polarities[v]
	return ok
}

// Polarity maps the verdict onto the signed consensus axis:
// malicious +1, unsure 0, benign -1. Unknown verdicts count as 0.
func (v Verdict) Polarity() float64 {
	return polarities[v]
}

// String returns the string representation of the verdict.
func (v Verdict) String() string {
	return string(v)
}

// ParseVerdict parses a string into a Verdict value. Matching is exact.
func ParseVerdict(s string) (Verdict, error) {
	v := Verdict(s)
	if !v.IsValid() {
		return "", fmt.Errorf("invalid verdict: %q", s)
	}
	return v, nil
}

// AllVerdicts returns every verdict from most to least accusatory.
func AllVerdicts() []Verdict {
	return []Verdict{VerdictMalicious, VerdictUnsure, VerdictBenign}
}
