package analyzer

import (
	"fmt"
	"strings"

	"github.com/zero-day-ai/verdict/indicator"
	"github.com/zero-day-ai/verdict/record"
)

// DefaultMaxBodyChars bounds the body text sent to a model.
const DefaultMaxBodyChars = 2000

const truncationMarker = "\n\n[TRUNCATED]"

const (
	noURLs     = "(no urls provided)"
	noMetadata = "(no metadata provided)"
	strictJSON = "Return STRICT JSON only."
)

// view describes what one role may look at.
type view struct {
	title string
	sees  string
	tags  []indicator.Tag
}

var views = map[record.Role]view{
	record.RoleContent: {
		title: "CONTENT ANALYZER",
		sees:  "the subject line and body text",
		tags:  indicator.ContentTags,
	},
	record.RoleReference: {
		title: "REFERENCE ANALYZER",
		sees:  "the list of URLs referenced by the message; do not browse them",
		tags:  indicator.ReferenceTags,
	},
	record.RoleMetadata: {
		title: "METADATA ANALYZER",
		sees:  "the raw header block; if none is provided answer unsure with confidence 0.0",
		tags:  indicator.MetadataTags,
	},
}

// SystemPrompt returns the instructions for role's analyzer.
func SystemPrompt(role record.Role) string {
	v, ok := views[role]
	if !ok {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are the %s in a multi-analyzer phishing detection system.\n\n", v.title)
	fmt.Fprintf(&b, "You see ONLY %s. Do not assume anything about other parts of the message.\n\n", v.sees)
	b.WriteString("Decide whether the message is malicious, benign, or unsure, and cite concrete indicators.\n\n")
	b.WriteString("POSITIVE (PHISHING) INDICATORS\n")
	writeTags(&b, v.tags)
	b.WriteString("\nNEGATIVE (LEGITIMATE) INDICATORS\n")
	writeTags(&b, indicator.NegativeTags)
	b.WriteString("\nDECISION LOGIC\n")
	b.WriteString("- malicious: strong phishing indicators present\n")
	b.WriteString("- benign: benign content, no phishing indicators\n")
	b.WriteString("- unsure: weak, ambiguous, or conflicting evidence\n\n")
	b.WriteString("OUTPUT FORMAT (STRICT JSON ONLY)\n")
	b.WriteString(outputContract(string(role)))
	b.WriteString("\nUse only the indicators listed above. Use double quotes, no comments, no trailing commas.\n")
	return b.String()
}

// UnifiedSystemPrompt returns the instructions for a single completion that
// covers every view.
func UnifiedSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a UNIFIED ANALYZER for a phishing detection system.\n\n")
	b.WriteString("Return STRICT JSON ONLY with exactly these top-level keys: ")
	roles := record.AllRoles()
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = fmt.Sprintf("%q", r)
	}
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(".\nEach value is an object of this shape, with \"agent\" set to its key:\n")
	b.WriteString(outputContract("<key>"))
	b.WriteString("\nANALYSIS RULES\n")
	for _, r := range roles {
		fmt.Fprintf(&b, "- %s: analyze ONLY %s.\n", r, views[r].sees)
	}
	b.WriteString("\nPOSITIVE (PHISHING) INDICATORS\n")
	writeTags(&b, indicator.DefaultPositive.Tags())
	b.WriteString("\nNEGATIVE (LEGITIMATE) INDICATORS\n")
	writeTags(&b, indicator.NegativeTags)
	b.WriteString("\nUse only the indicators listed above. If evidence is weak or ambiguous, prefer \"unsure\".\n")
	return b.String()
}

// UserPrompt renders the part of a that role may see.
func UserPrompt(role record.Role, a Artifact, maxBody int) string {
	switch role {
	case record.RoleContent:
		return fmt.Sprintf("Subject: %s\n\nBody:\n%s\n\n%s", a.Subject, truncate(a.Body, maxBody), strictJSON)
	case record.RoleReference:
		return fmt.Sprintf("URLs:\n%s\n\n%s", urlBlock(a.URLs), strictJSON)
	case record.RoleMetadata:
		return fmt.Sprintf("Headers:\n%s\n\n%s", headerBlock(a.Headers), strictJSON)
	default:
		return strictJSON
	}
}

// UnifiedUserPrompt renders every view of a.
func UnifiedUserPrompt(a Artifact, maxBody int) string {
	return fmt.Sprintf("Subject:\n%s\n\nBody:\n%s\n\nURLs:\n%s\n\nHeaders:\n%s\n\n%s",
		a.Subject, truncate(a.Body, maxBody), urlBlock(a.URLs), headerBlock(a.Headers), strictJSON)
}

func outputContract(agent string) string {
	return fmt.Sprintf(`{
  %q: %q,
  %q: "malicious | benign | unsure",
  %q: 0.0,
  %q: [],
  %q: [],
  %q: [{%q: "", %q: "", %q: ""}],
  %q: "",
  %q: ""
}
`,
		record.KeyAgent, agent,
		record.KeyVerdict,
		record.KeyConfidence,
		record.KeyPositiveIndicators,
		record.KeyNegativeIndicators,
		record.KeyEvidence, record.EvidenceKeyIndicator, record.EvidenceKeyQuote, record.EvidenceKeyJustification,
		record.KeyRationale,
		record.KeyNotes)
}

func writeTags(b *strings.Builder, tags []indicator.Tag) {
	for _, t := range tags {
		fmt.Fprintf(b, "- %s\n", t)
	}
}

func urlBlock(urls []string) string {
	var kept []string
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			kept = append(kept, u)
		}
	}
	if len(kept) == 0 {
		return noURLs
	}
	return strings.Join(kept, "\n")
}

func headerBlock(headers string) string {
	if h := strings.TrimSpace(headers); h != "" {
		return h
	}
	return noMetadata
}

// truncate cuts s to at most limit runes and marks the cut. limit <= 0
// disables it.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + truncationMarker
}
