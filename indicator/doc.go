// Package indicator defines the closed vocabularies of indicator tags that
// analyzers may cite, and an immutable Set type for carrying them.
//
// Two vocabularies exist: the positive (phishing-style) vocabulary, shared by
// every analyzer role, and a smaller negative (benign-style) vocabulary. Tags
// outside a vocabulary are never invented or repaired; Vocabulary.Filter simply
// drops them.
//
//	positive := indicator.DefaultPositive.Filter([]string{"dkim_fail", "made_up_tag"})
//	positive.Contains(indicator.DKIMFail) // true
//	positive.Len()                        // 1
package indicator
