package llm

import (
	"slices"
	"sync"
)

// UsageTracker accumulates token usage per analyzer role.
// The zero value is not usable; call NewUsageTracker.
type UsageTracker struct {
	mu     sync.RWMutex
	byRole map[string]TokenUsage
	total  TokenUsage
}

// NewUsageTracker creates an empty tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{byRole: make(map[string]TokenUsage)}
}

// Add records usage for role. A nil tracker ignores the call.
func (t *UsageTracker) Add(role string, usage TokenUsage) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.byRole[role] = t.byRole[role].Add(usage)
	t.total = t.total.Add(usage)
}

// Total returns the aggregate usage across all roles.
func (t *UsageTracker) Total() TokenUsage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

// ByRole returns the usage recorded for role, or zero usage.
func (t *UsageTracker) ByRole(role string) TokenUsage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byRole[role]
}

// Roles returns the tracked roles in ascending order.
func (t *UsageTracker) Roles() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	roles := make([]string, 0, len(t.byRole))
	for role := range t.byRole {
		roles = append(roles, role)
	}
	slices.Sort(roles)
	return roles
}

// Reset clears all tracked usage.
func (t *UsageTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.byRole = make(map[string]TokenUsage)
	t.total = TokenUsage{}
}
