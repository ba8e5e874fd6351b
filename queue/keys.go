package queue

import "strings"

// keyPrefix namespaces every key this package writes.
const keyPrefix = "verdict"

// QueueKey returns the list key of the named queue.
func QueueKey(name string) string {
	return formatKeyName(keyPrefix, name, "queue")
}

// HealthKey returns the heartbeat key of the named queue.
func HealthKey(name string) string {
	return formatKeyName(keyPrefix, name, "health")
}

// WorkersKey returns the active worker counter of the named queue.
func WorkersKey(name string) string {
	return formatKeyName(keyPrefix, name, "workers")
}

// ResultChannel returns the pub/sub channel carrying a job's outcome.
func ResultChannel(jobID string) string {
	return formatKeyName(keyPrefix, "results", jobID)
}

// formatKeyName joins parts with the ':' separator.
func formatKeyName(parts ...string) string {
	return strings.Join(parts, ":")
}
