package metrics

import (
	"fmt"
	"strings"
)

// Tag creates a tag string in "key:value" format.
func Tag(key, value string) string {
	return fmt.Sprintf("%s:%s", key, value)
}

func OperationTag(name string) string {
	return Tag("operation", name)
}

func PoolTag(name string) string {
	return Tag("pool", name)
}

func LevelTag(level string) string {
	return Tag("level", level)
}

// StatusTag is success, failure, timeout or rejected.
func StatusTag(status string) string {
	return Tag("status", status)
}

func CircuitStateTag(state string) string {
	return Tag("circuit_state", state)
}

// SeverityTag is warning or critical.
func SeverityTag(severity string) string {
	return Tag("severity", severity)
}

// SplitTag splits "key:value". A tag without a colon is a key with an empty
// value.
func SplitTag(tag string) (key, value string) {
	key, value, _ = strings.Cut(tag, ":")
	return key, value
}

// MergeTags returns base followed by tags without aliasing base.
func MergeTags(base, tags []string) []string {
	if len(tags) == 0 {
		return base
	}
	if len(base) == 0 {
		return tags
	}
	out := make([]string, 0, len(base)+len(tags))
	out = append(out, base...)
	return append(out, tags...)
}
