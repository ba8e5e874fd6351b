package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultVocabularies(t *testing.T) {
	assert.Equal(t, len(ContentTags)+len(ReferenceTags)+len(MetadataTags), DefaultPositive.Len())
	assert.Equal(t, len(NegativeTags), DefaultNegative.Len())

	for _, tag := range NegativeTags {
		assert.False(t, DefaultPositive.Contains(tag), "%s must not be a positive tag", tag)
	}
	assert.True(t, DefaultPositive.Covers(HardMetadata))
}

func TestVocabulary_Filter(t *testing.T) {
	got := DefaultPositive.Filter([]string{"spf_fail_or_softfail", "made_up_tag"})

	assert.Equal(t, []string{"spf_fail_or_softfail"}, got.Strings())
}

func TestVocabulary_FilterDropsCrossVocabularyTags(t *testing.T) {
	got := DefaultNegative.Filter([]string{"dkim_fail", "professional_tone_and_language"})

	assert.Equal(t, []Tag{ProfessionalToneAndLanguage}, got.Tags())
}

func TestParseVocabulary(t *testing.T) {
	v, err := ParseVocabulary([]string{"alpha", "beta", "alpha"})
	require.NoError(t, err)
	assert.Equal(t, 2, v.Len())
	assert.True(t, v.Contains("beta"))

	_, err = ParseVocabulary([]string{"alpha", ""})
	assert.Error(t, err)
}

func TestVocabulary_Covers(t *testing.T) {
	v := NewVocabulary(DKIMFail, DMARCFail)

	assert.True(t, v.Covers(NewSet(DKIMFail)))
	assert.True(t, v.Covers(Set{}))
	assert.False(t, v.Covers(NewSet(DKIMFail, SPFFailOrSoftfail)))
}
