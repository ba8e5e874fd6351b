package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/verdict/indicator"
)

func TestNewEvidence(t *testing.T) {
	e := NewEvidence(indicator.ReplyToMismatch, "Reply-To: helpdesk@evil.com", "Reply-To differs from From domain")

	assert.Equal(t, "reply_to_mismatch", e.Indicator())
	assert.Equal(t, "Reply-To: helpdesk@evil.com", e.Quote())
	assert.Equal(t, "Reply-To differs from From domain", e.Justification())
}

func TestEvidenceFromValue_NonObject(t *testing.T) {
	e := EvidenceFromValue("just a string")

	assert.Equal(t, "just a string", e.Value())
	assert.Empty(t, e.Indicator())
	assert.Empty(t, e.Quote())
}

func TestEvidenceFromValue_DoesNotAlias(t *testing.T) {
	src := map[string]any{
		"indicator": "made_up_tag",
		"extra":     []any{"a"},
	}
	e := EvidenceFromValue(src)

	src["indicator"] = "changed"
	src["extra"].([]any)[0] = "b"

	assert.Equal(t, "made_up_tag", e.Indicator(), "tags in evidence are not revalidated")
	value := e.Value().(map[string]any)
	assert.Equal(t, []any{"a"}, value["extra"])
}

func TestEvidenceItem_JSON(t *testing.T) {
	var e EvidenceItem
	require.NoError(t, json.Unmarshal([]byte(`{"indicator":"ip_based_url","text_quote":"http://192.168.0.5/update","weird":[1,2]}`), &e))

	assert.Equal(t, "ip_based_url", e.Indicator())

	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"indicator":"ip_based_url","text_quote":"http://192.168.0.5/update","weird":[1,2]}`, string(data))
}

func TestEvidenceItem_Equal(t *testing.T) {
	a := NewEvidence(indicator.DKIMFail, "dkim=fail", "signature invalid")
	b := EvidenceFromValue(a.Value())
	c := NewEvidence(indicator.DKIMFail, "dkim=fail", "other")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}
