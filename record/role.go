package record

import "fmt"

// Role identifies which view of the artifact an analyzer examined.
type Role string

const (
	// RoleContent covers the subject and body text.
	RoleContent Role = "content"

	// RoleReference covers the reference strings (URLs) found in the artifact.
	RoleReference Role = "reference"

	// RoleMetadata covers headers and authentication results.
	RoleMetadata Role = "metadata"
)

// IsValid returns true if the role is one of the known analyzer roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleContent, RoleReference, RoleMetadata:
		return true
	default:
		return false
	}
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// ParseRole parses a string into a Role value.
// Returns an error if the string is not a known role.
func ParseRole(s string) (Role, error) {
	role := Role(s)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid analyzer role: %q", s)
	}
	return role, nil
}

// AllRoles returns every role in priority order: content, reference, metadata.
// Fused evidence is always concatenated in this order.
func AllRoles() []Role {
	return []Role{RoleContent, RoleReference, RoleMetadata}
}
