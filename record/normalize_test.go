package record

import (
	"encoding/json"
	"math"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/verdict/indicator"
	"google.golang.org/protobuf/types/known/structpb"
)

// validOutput returns a complete analyzer object that normalizes cleanly.
func validOutput() map[string]any {
	return map[string]any{
		"agent":               "metadata",
		"verdict":             "malicious",
		"confidence":          0.9,
		"positive_indicators": []any{"dkim_fail", "reply_to_mismatch"},
		"negative_indicators": []any{},
		"evidence": []any{
			map[string]any{
				"indicator":   "reply_to_mismatch",
				"text_quote":  "Reply-To: helpdesk@evil.com",
				"explanation": "Reply-To differs from From domain",
			},
		},
		"rationale": "authentication failures",
		"notes":     "",
	}
}

func with(key string, value any) map[string]any {
	out := validOutput()
	out[key] = value
	return out
}

func without(keys ...string) map[string]any {
	out := validOutput()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// assertWellFormed checks every record invariant.
func assertWellFormed(t *testing.T, rec Record, role Role) {
	t.Helper()
	assert.Equal(t, role, rec.Role)
	assert.True(t, rec.Verdict.IsValid(), "verdict %q outside the closed set", rec.Verdict)
	assert.GreaterOrEqual(t, rec.Confidence, 0.0)
	assert.LessOrEqual(t, rec.Confidence, 1.0)
	assert.NotNil(t, rec.Evidence)
	assert.True(t, indicator.DefaultPositive.Covers(rec.PositiveIndicators))
	assert.True(t, indicator.DefaultNegative.Covers(rec.NegativeIndicators))

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, k := range RequiredKeys() {
		assert.Contains(t, decoded, k)
	}
	assert.IsType(t, []any{}, decoded[KeyEvidence])
}

func assertSafeDefault(t *testing.T, rec Record, role Role, rationale string) {
	t.Helper()
	assertWellFormed(t, rec, role)
	assert.Equal(t, VerdictUnsure, rec.Verdict)
	assert.Equal(t, 0.0, rec.Confidence)
	assert.True(t, rec.PositiveIndicators.IsEmpty())
	assert.True(t, rec.NegativeIndicators.IsEmpty())
	assert.Empty(t, rec.Evidence)
	assert.Empty(t, rec.Notes)
	assert.Contains(t, rec.Rationale, rationale)
}

func TestNormalize_Valid(t *testing.T) {
	rec := Normalize(validOutput(), RoleMetadata)

	assertWellFormed(t, rec, RoleMetadata)
	assert.Equal(t, VerdictMalicious, rec.Verdict)
	assert.Equal(t, 0.9, rec.Confidence)
	assert.Equal(t, []indicator.Tag{indicator.DKIMFail, indicator.ReplyToMismatch}, rec.PositiveIndicators.Tags())
	require.Len(t, rec.Evidence, 1)
	assert.Equal(t, "reply_to_mismatch", rec.Evidence[0].Indicator())
	assert.Equal(t, "authentication failures", rec.Rationale)
}

func TestNormalize_Totality(t *testing.T) {
	tests := []struct {
		name      string
		raw       any
		rationale string
	}{
		{"nil", nil, "not an object"},
		{"string", "malicious", "not an object"},
		{"number", 42, "not an object"},
		{"list", []any{validOutput()}, "not an object"},
		{"nil record pointer", (*Record)(nil), "not an object"},
		{"nil structpb", (*structpb.Struct)(nil), "not an object"},
		{"json array bytes", []byte(`[1,2,3]`), "not an object"},
		{"truncated json", json.RawMessage(`{"verdict":`), "not an object"},
		{"empty object", map[string]any{}, "missing keys"},
		{"nil map", map[string]any(nil), "missing keys"},
		{"missing verdict", without("verdict"), "missing keys: [verdict]"},
		{"missing several", without("notes", "agent"), "missing keys: [agent notes]"},
		{"verdict wrong type", with("verdict", 1), "invalid verdict: 1"},
		{"verdict from other vocabulary", with("verdict", "phishing"), `invalid verdict: "phishing"`},
		{"verdict wrong case", with("verdict", "Malicious"), "invalid verdict"},
		{"verdict null", with("verdict", nil), "invalid verdict: null"},
		{"confidence text", with("confidence", "abc"), `confidence is not a number: "abc"`},
		{"confidence null", with("confidence", nil), "confidence is not a number"},
		{"confidence bool", with("confidence", true), "confidence is not a number"},
		{"confidence object", with("confidence", map[string]any{"v": 1}), "confidence is not a number"},
		{"confidence NaN", with("confidence", math.NaN()), "confidence is not a number"},
		{"confidence NaN text", with("confidence", "NaN"), "confidence is not a number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec Record
			require.NotPanics(t, func() { rec = Normalize(tt.raw, RoleReference) })
			assertSafeDefault(t, rec, RoleReference, tt.rationale)
		})
	}
}

func TestNormalize_WrongShapesRecovered(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"indicators object", "positive_indicators", map[string]any{"dkim_fail": true}},
		{"indicators number", "negative_indicators", 7},
		{"evidence string", "evidence", "see headers"},
		{"evidence object", "evidence", map[string]any{"indicator": "dkim_fail"}},
		{"evidence null", "evidence", nil},
		{"rationale number", "rationale", 3.5},
		{"notes list", "notes", []any{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Normalize(with(tt.key, tt.value), RoleMetadata)
			assertWellFormed(t, rec, RoleMetadata)
			assert.Equal(t, VerdictMalicious, rec.Verdict, "shape repair must not discard the verdict")
		})
	}
}

func TestNormalize_Clamping(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  float64
	}{
		{"above range", 1.7, 1.0},
		{"below range", -0.2, 0.0},
		{"in range", 0.42, 0.42},
		{"integer", 1, 1.0},
		{"numeric string", " 0.25 ", 0.25},
		{"json number", json.Number("0.75"), 0.75},
		{"positive infinity", math.Inf(1), 1.0},
		{"negative infinity", math.Inf(-1), 0.0},
		{"large integer string", "12", 1.0},
		{"overflowing string", "1e400", 1.0},
		{"overflowing json number", json.Number("-1e400"), 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Normalize(with("confidence", tt.value), RoleContent)
			assert.Equal(t, VerdictMalicious, rec.Verdict, "out-of-range confidence is clamped, not rejected")
			assert.InDelta(t, tt.want, rec.Confidence, 1e-12)
		})
	}
}

func TestNormalize_UnparseableConfidenceIsNotClamped(t *testing.T) {
	rec := Normalize(with("confidence", "abc"), RoleContent)

	assertSafeDefault(t, rec, RoleContent, "confidence is not a number")
}

func TestNormalize_VocabularyFiltering(t *testing.T) {
	rec := Normalize(with("positive_indicators", []any{"spf_fail_or_softfail", "made_up_tag"}), RoleMetadata)

	assert.Equal(t, []string{"spf_fail_or_softfail"}, rec.PositiveIndicators.Strings())
}

func TestNormalize_IndicatorShapes(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  []string
	}{
		{"null", nil, []string{}},
		{"scalar", "dkim_fail", []string{"dkim_fail"}},
		{"unknown scalar", "dkim_failed", []string{}},
		{"string slice", []string{"dmarc_fail", "dkim_fail"}, []string{"dkim_fail", "dmarc_fail"}},
		{"mixed elements", []any{"dkim_fail", 3, nil, true}, []string{"dkim_fail"}},
		{"duplicates", []any{"dkim_fail", "dkim_fail"}, []string{"dkim_fail"}},
		{"negative tag in positive slot", []any{"professional_tone_and_language"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Normalize(with("positive_indicators", tt.value), RoleMetadata)
			assert.Equal(t, tt.want, rec.PositiveIndicators.Strings())
		})
	}
}

func TestNormalize_NegativeIndicators(t *testing.T) {
	rec := Normalize(with("negative_indicators", []any{"reasonable_business_context", "dkim_fail"}), RoleContent)

	assert.Equal(t, []string{"reasonable_business_context"}, rec.NegativeIndicators.Strings())
}

func TestNormalize_RoleSpoofDefense(t *testing.T) {
	raw := validOutput()
	raw["agent"] = "metadata"

	rec := Normalize(raw, RoleContent)

	assert.Equal(t, RoleContent, rec.Role)
}

func TestNormalize_UnknownRole(t *testing.T) {
	rec := Normalize(validOutput(), Role("headers"))

	assert.Equal(t, Role("headers"), rec.Role)
	assert.Equal(t, VerdictUnsure, rec.Verdict)
	assert.Contains(t, rec.Rationale, `unknown analyzer role: "headers"`)
}

func TestNormalize_EvidencePassThrough(t *testing.T) {
	evidence := []any{
		map[string]any{"indicator": "made_up_tag", "text_quote": "x", "explanation": "y"},
		"free text item",
		3.0,
	}

	rec := Normalize(with("evidence", evidence), RoleReference)

	require.Len(t, rec.Evidence, 3)
	assert.Equal(t, "made_up_tag", rec.Evidence[0].Indicator())
	assert.Equal(t, "free text item", rec.Evidence[1].Value())
	assert.Equal(t, 3.0, rec.Evidence[2].Value())

	evidence[1] = "mutated"
	assert.Equal(t, "free text item", rec.Evidence[1].Value(), "record must not alias raw input")
}

func selfMap() map[string]any {
	m := map[string]any{"indicator": "dkim_fail"}
	m["self"] = m
	return m
}

func selfSlice() []any {
	s := make([]any, 2)
	s[0] = "dkim_fail"
	s[1] = s
	return s
}

func TestNormalize_SelfReferentialValues(t *testing.T) {
	t.Run("evidence item", func(t *testing.T) {
		rec := Normalize(with("evidence", []any{selfMap(), "kept", []any{selfSlice()}}), RoleContent)

		assertWellFormed(t, rec, RoleContent)
		assert.Equal(t, VerdictMalicious, rec.Verdict)
		require.Len(t, rec.Evidence, 1, "items that refer to themselves are dropped")
		assert.Equal(t, "kept", rec.Evidence[0].Value())
	})

	t.Run("verdict", func(t *testing.T) {
		rec := Normalize(with("verdict", selfMap()), RoleContent)
		assertSafeDefault(t, rec, RoleContent, "invalid verdict: map[")
		assert.Contains(t, rec.Rationale, "...")
	})

	t.Run("confidence", func(t *testing.T) {
		rec := Normalize(with("confidence", selfSlice()), RoleContent)
		assertSafeDefault(t, rec, RoleContent, "confidence is not a number: [dkim_fail ...]")
	})

	t.Run("indicators", func(t *testing.T) {
		rec := Normalize(with("positive_indicators", selfSlice()), RoleMetadata)
		assertWellFormed(t, rec, RoleMetadata)
		assert.Equal(t, []string{"dkim_fail"}, rec.PositiveIndicators.Strings())

		rec = Normalize(with("negative_indicators", []any{selfMap()}), RoleMetadata)
		assertWellFormed(t, rec, RoleMetadata)
		assert.True(t, rec.NegativeIndicators.IsEmpty())
	})

	t.Run("rationale", func(t *testing.T) {
		rec := Normalize(with("rationale", selfMap()), RoleReference)
		assertWellFormed(t, rec, RoleReference)
		assert.Equal(t, "map[indicator:dkim_fail self:...]", rec.Rationale)
	})
}

func TestNormalize_SharedValuesAreNotCycles(t *testing.T) {
	shared := map[string]any{"indicator": "dkim_fail"}
	evidence := []any{shared, map[string]any{"a": shared, "b": shared}}

	rec := Normalize(with("evidence", evidence), RoleContent)

	require.Len(t, rec.Evidence, 2)
	assert.Equal(t, "dkim_fail", rec.Evidence[0].Indicator())
	assert.Equal(t, map[string]any{"a": shared, "b": shared}, rec.Evidence[1].Value())
}

func TestNormalize_DeepNestingIsDropped(t *testing.T) {
	var deep any = "leaf"
	for range maxDepth + 1 {
		deep = []any{deep}
	}

	rec := Normalize(with("evidence", []any{deep}), RoleContent)

	assertWellFormed(t, rec, RoleContent)
	assert.Empty(t, rec.Evidence)
}

func TestNormalize_RationaleTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", maxReprLen)

	rec := Normalize(with("verdict", []any{long}), RoleContent)
	assert.True(t, utf8.ValidString(rec.Rationale))
	assert.True(t, strings.HasSuffix(rec.Rationale, "..."))

	rec = Normalize(with("verdict", long), RoleContent)
	assert.True(t, utf8.ValidString(rec.Rationale))
	assert.NotContains(t, rec.Rationale, `\x`)
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := map[string]any{
		"valid":        validOutput(),
		"clamped":      with("confidence", 4.0),
		"filtered":     with("positive_indicators", []any{"dkim_fail", "made_up_tag"}),
		"safe default": "not an object",
		"odd evidence": with("evidence", []any{"text", map[string]any{"nested": []any{1.0, "two"}}}),
	}

	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			first := Normalize(raw, RoleMetadata)
			second := Normalize(first, RoleMetadata)
			third := Normalize(first.Wire(), RoleMetadata)

			if diff := cmp.Diff(first, second); diff != "" {
				t.Errorf("re-normalizing a record drifted (-first +second):\n%s", diff)
			}
			if diff := cmp.Diff(first, third); diff != "" {
				t.Errorf("re-normalizing the wire form drifted (-first +third):\n%s", diff)
			}
		})
	}
}

func TestNormalize_JSONBytes(t *testing.T) {
	raw := []byte(`{
		"agent": "content",
		"verdict": "benign",
		"confidence": 0.8,
		"positive_indicators": null,
		"negative_indicators": ["professional_tone_and_language"],
		"evidence": [],
		"rationale": "routine newsletter",
		"notes": ""
	}`)

	rec := Normalize(raw, RoleContent)

	assert.Equal(t, VerdictBenign, rec.Verdict)
	assert.Equal(t, 0.8, rec.Confidence)
	assert.True(t, rec.PositiveIndicators.IsEmpty())
	assert.Equal(t, []string{"professional_tone_and_language"}, rec.NegativeIndicators.Strings())
}

func TestNormalize_StructPB(t *testing.T) {
	st, err := structpb.NewStruct(validOutput())
	require.NoError(t, err)

	rec := Normalize(st, RoleMetadata)

	assert.Equal(t, VerdictMalicious, rec.Verdict)
	assert.InDelta(t, 0.9, rec.Confidence, 1e-12)
	assert.True(t, rec.PositiveIndicators.Contains(indicator.DKIMFail))
	require.Len(t, rec.Evidence, 1)
	assert.Equal(t, "Reply-To: helpdesk@evil.com", rec.Evidence[0].Quote())
}

func TestNormalize_StringKeyedMap(t *testing.T) {
	raw := map[string]string{
		"agent":               "url",
		"verdict":             "unsure",
		"confidence":          "0.3",
		"positive_indicators": "url_shortener",
		"negative_indicators": "",
		"evidence":            "",
		"rationale":           "short link only",
		"notes":               "",
	}

	rec := Normalize(raw, RoleReference)

	assert.Equal(t, VerdictUnsure, rec.Verdict)
	assert.Equal(t, 0.3, rec.Confidence)
	assert.Equal(t, []string{"url_shortener"}, rec.PositiveIndicators.Strings())
	assert.Empty(t, rec.Evidence)
}

func TestNormalizer_CustomVocabulary(t *testing.T) {
	n := NewNormalizer(
		WithPositiveVocabulary(indicator.NewVocabulary("macro_attachment")),
		WithNegativeVocabulary(indicator.NewVocabulary("signed_by_known_vendor")),
	)
	raw := with("positive_indicators", []any{"macro_attachment", "dkim_fail"})
	raw["negative_indicators"] = []any{"signed_by_known_vendor", "reasonable_business_context"}

	rec := n.Normalize(raw, RoleContent)

	assert.Equal(t, []string{"macro_attachment"}, rec.PositiveIndicators.Strings())
	assert.Equal(t, []string{"signed_by_known_vendor"}, rec.NegativeIndicators.Strings())
}

func TestNormalizer_NilReceiverUsesDefaults(t *testing.T) {
	var n *Normalizer

	rec := n.Normalize(validOutput(), RoleMetadata)

	assert.Equal(t, VerdictMalicious, rec.Verdict)
}

func TestNormalize_ConcurrentUse(t *testing.T) {
	n := NewNormalizer()
	var wg sync.WaitGroup
	results := make([]Record, 64)

	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = n.Normalize(validOutput(), AllRoles()[i%3])
		}(i)
	}
	wg.Wait()

	for i, rec := range results {
		assert.Equal(t, AllRoles()[i%3], rec.Role)
		assert.Equal(t, VerdictMalicious, rec.Verdict)
	}
}

func TestRecord_MarshalJSONAlwaysHasEvidenceArray(t *testing.T) {
	data, err := json.Marshal(Record{Role: RoleContent, Verdict: VerdictUnsure})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"agent": "content",
		"verdict": "unsure",
		"confidence": 0,
		"positive_indicators": [],
		"negative_indicators": [],
		"evidence": [],
		"rationale": "",
		"notes": ""
	}`, string(data))
}

func TestNormalizeChecked_ReportsDiscards(t *testing.T) {
	n := NewNormalizer()

	_, discarded := n.NormalizeChecked(validOutput(), RoleContent)
	assert.False(t, discarded)

	// Recovered shape problems are not discards.
	_, discarded = n.NormalizeChecked(with(KeyConfidence, 3.0), RoleContent)
	assert.False(t, discarded)

	_, discarded = n.NormalizeChecked(with(KeyVerdict, "phishing"), RoleContent)
	assert.True(t, discarded)

	_, discarded = n.NormalizeChecked("text", RoleContent)
	assert.True(t, discarded)

	_, discarded = n.NormalizeChecked(validOutput(), Role("attachment"))
	assert.True(t, discarded)
}
