package indicator

import "fmt"

// Positive (phishing-style) tags, grouped by the view that usually cites them.
// Any role may cite any positive tag.
const (
	// Content view.
	UrgentThreatOrDeadline       Tag = "urgent_threat_or_deadline"
	CredentialHarvesting         Tag = "credential_harvesting"
	FinancialGainOrReward        Tag = "financial_gain_or_reward"
	ImpersonationOfTrustedEntity Tag = "impersonation_of_trusted_entity"
	UnexpectedOrUnusualRequest   Tag = "unexpected_or_unusual_request"
	LanguageStyleAnomaly         Tag = "language_style_anomaly"
	MismatchedContextOrRecipient Tag = "mismatched_context_or_recipient"
	ExcessiveClickOrOpenPressure Tag = "excessive_click_or_open_pressure"

	// Reference view.
	IPBasedURL                Tag = "ip_based_url"
	URLShortener              Tag = "url_shortener"
	SuspiciousTLD             Tag = "suspicious_tld"
	TyposquattingOrLookalike  Tag = "typosquatting_or_lookalike_domain"
	SuspiciousSubdomainDepth  Tag = "suspicious_subdomain_depth"
	CredentialPathOrLoginLure Tag = "credential_path_or_login_lure"
	UnusualQueryParams        Tag = "unusual_query_params"
	MismatchDisplayVsLink     Tag = "mismatch_display_vs_link"

	// Metadata view.
	FromDomainMismatch           Tag = "from_domain_mismatch"
	ReplyToMismatch              Tag = "reply_to_mismatch"
	DisplayNameImpersonation     Tag = "display_name_impersonation"
	SPFFailOrSoftfail            Tag = "spf_fail_or_softfail"
	DKIMFail                     Tag = "dkim_fail"
	DMARCFail                    Tag = "dmarc_fail"
	SuspiciousSenderDomain       Tag = "suspicious_sender_domain"
	UnusualMessageIDDomain       Tag = "unusual_message_id_domain"
	ExternalSenderClaimsInternal Tag = "external_sender_claims_internal"
)

// Negative (benign-style) tags.
const (
	ReasonableBusinessContext   Tag = "reasonable_business_context"
	InformationalOnly           Tag = "informational_only_no_action_required"
	ProfessionalToneAndLanguage Tag = "professional_tone_and_language"
	NoSensitiveDataRequested    Tag = "no_sensitive_data_requested"
)

// Tag groups used when prompting analyzers for a single view.
var (
	ContentTags = []Tag{
		UrgentThreatOrDeadline, CredentialHarvesting, FinancialGainOrReward,
		ImpersonationOfTrustedEntity, UnexpectedOrUnusualRequest, LanguageStyleAnomaly,
		MismatchedContextOrRecipient, ExcessiveClickOrOpenPressure,
	}
	ReferenceTags = []Tag{
		IPBasedURL, URLShortener, SuspiciousTLD, TyposquattingOrLookalike,
		SuspiciousSubdomainDepth, CredentialPathOrLoginLure, UnusualQueryParams,
		MismatchDisplayVsLink,
	}
	MetadataTags = []Tag{
		FromDomainMismatch, ReplyToMismatch, DisplayNameImpersonation,
		SPFFailOrSoftfail, DKIMFail, DMARCFail, SuspiciousSenderDomain,
		UnusualMessageIDDomain, ExternalSenderClaimsInternal,
	}
	NegativeTags = []Tag{
		ReasonableBusinessContext, InformationalOnly,
		ProfessionalToneAndLanguage, NoSensitiveDataRequested,
	}
)

// Built-in vocabularies and the metadata tags that are conclusive on their own.
var (
	DefaultPositive = NewVocabulary(concat(ContentTags, ReferenceTags, MetadataTags)...)
	DefaultNegative = NewVocabulary(NegativeTags...)

	// HardMetadata lists protocol-verifiable authentication failures and
	// sender identity mismatches.
	HardMetadata = NewSet(SPFFailOrSoftfail, DKIMFail, DMARCFail, ReplyToMismatch)
)

// Vocabulary is a closed set of recognized tags.
type Vocabulary struct {
	members Set
}

// NewVocabulary returns a vocabulary recognizing exactly the given tags.
func NewVocabulary(tags ...Tag) Vocabulary {
	return Vocabulary{members: NewSet(tags...)}
}

// ParseVocabulary builds a vocabulary from configuration strings, rejecting
// empty entries.
func ParseVocabulary(names []string) (Vocabulary, error) {
	tags := make([]Tag, 0, len(names))
	for i, n := range names {
		if n == "" {
			return Vocabulary{}, fmt.Errorf("vocabulary entry %d is empty", i)
		}
		tags = append(tags, Tag(n))
	}
	return NewVocabulary(tags...), nil
}

// Contains reports whether t is recognized.
func (v Vocabulary) Contains(t Tag) bool {
	return v.members.Contains(t)
}

// Len returns the number of recognized tags.
func (v Vocabulary) Len() int {
	return v.members.Len()
}

// Tags returns the recognized tags in ascending order.
func (v Vocabulary) Tags() []Tag {
	return v.members.Tags()
}

// Filter keeps only recognized names and returns them as a set.
func (v Vocabulary) Filter(names []string) Set {
	kept := make([]Tag, 0, len(names))
	for _, n := range names {
		if t := Tag(n); v.members.Contains(t) {
			kept = append(kept, t)
		}
	}
	return NewSet(kept...)
}

// Covers reports whether every member of s is recognized.
func (v Vocabulary) Covers(s Set) bool {
	for _, t := range s.tags {
		if !v.members.Contains(t) {
			return false
		}
	}
	return true
}

func concat(groups ...[]Tag) []Tag {
	var out []Tag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
