package indicator

import (
	"encoding/json"
	"slices"
)

// Tag is a single indicator identifier, e.g. "dkim_fail".
type Tag string

// String returns the string representation of the tag.
func (t Tag) String() string {
	return string(t)
}

// Set is an immutable, sorted, duplicate-free collection of tags.
// The zero value is an empty set.
type Set struct {
	tags []Tag
}

// NewSet builds a set from the given tags, discarding duplicates.
func NewSet(tags ...Tag) Set {
	if len(tags) == 0 {
		return Set{}
	}
	sorted := slices.Clone(tags)
	slices.Sort(sorted)
	return Set{tags: slices.Compact(sorted)}
}

// Len returns the number of tags in the set.
func (s Set) Len() int {
	return len(s.tags)
}

// IsEmpty reports whether the set has no tags.
func (s Set) IsEmpty() bool {
	return len(s.tags) == 0
}

// Contains reports whether t is a member of the set.
func (s Set) Contains(t Tag) bool {
	_, found := slices.BinarySearch(s.tags, t)
	return found
}

// Tags returns the members in ascending order. The returned slice is a copy.
func (s Set) Tags() []Tag {
	return slices.Clone(s.tags)
}

// Strings returns the members as plain strings in ascending order.
func (s Set) Strings() []string {
	out := make([]string, len(s.tags))
	for i, t := range s.tags {
		out[i] = string(t)
	}
	return out
}

// Intersects reports whether s and other share at least one tag.
func (s Set) Intersects(other Set) bool {
	i, j := 0, 0
	for i < len(s.tags) && j < len(other.tags) {
		switch {
		case s.tags[i] == other.tags[j]:
			return true
		case s.tags[i] < other.tags[j]:
			i++
		default:
			j++
		}
	}
	return false
}

// Union returns a new set holding the members of s and every other set.
func (s Set) Union(others ...Set) Set {
	all := slices.Clone(s.tags)
	for _, o := range others {
		all = append(all, o.tags...)
	}
	return NewSet(all...)
}

// Equal reports whether both sets hold exactly the same tags.
func (s Set) Equal(other Set) bool {
	return slices.Equal(s.tags, other.tags)
}

// MarshalJSON encodes the set as a JSON array. An empty set encodes as [],
// never null.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

// UnmarshalJSON decodes a JSON array of strings. It performs no vocabulary
// check; pass the result through a Vocabulary to enforce one.
func (s *Set) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	tags := make([]Tag, len(raw))
	for i, r := range raw {
		tags[i] = Tag(r)
	}
	*s = NewSet(tags...)
	return nil
}
