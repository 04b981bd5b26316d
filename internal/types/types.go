// Package types provides shared types for the holdfast library.
// This package breaks import cycles between pkg/holdfast and the internal packages.
package types

import "time"

// CircuitState is the state of a single circuit breaker.
type CircuitState int32

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Priority scales how long a caller may wait for a bulkhead slot. The zero
// value is PriorityNormal.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityLow
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Rank orders priorities from most to least urgent: critical 0, high 1,
// normal 2, low 3.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityLow:
		return 3
	default:
		return 2
	}
}

// ParsePriority accepts the names returned by Priority.String.
func ParsePriority(s string) (Priority, bool) {
	switch s {
	case "low":
		return PriorityLow, true
	case "normal", "":
		return PriorityNormal, true
	case "high":
		return PriorityHigh, true
	case "critical":
		return PriorityCritical, true
	default:
		return PriorityNormal, false
	}
}

// WriteStrategy selects which levels a cache Set touches.
type WriteStrategy int

const (
	// WriteThrough writes every level concurrently.
	WriteThrough WriteStrategy = iota + 1
	// CacheAside writes L1 only.
	CacheAside
)

func (s WriteStrategy) String() string {
	switch s {
	case WriteThrough:
		return "write-through"
	case CacheAside:
		return "cache-aside"
	default:
		return "unknown"
	}
}

func ParseWriteStrategy(s string) (WriteStrategy, bool) {
	switch s {
	case "write-through", "writethrough", "":
		return WriteThrough, true
	case "cache-aside", "cacheaside":
		return CacheAside, true
	default:
		return WriteThrough, false
	}
}

type CacheOptions struct {
	TTL      time.Duration
	Strategy WriteStrategy
}

func DefaultOptions() *CacheOptions {
	return &CacheOptions{
		TTL:      5 * time.Minute,
		Strategy: WriteThrough,
	}
}

// CacheItem is an entry as held by the in-process level.
type CacheItem struct {
	CreatedAt    time.Time
	LastAccessed time.Time
	Key          string
	Value        []byte
	AccessCount  int64
	SizeBytes    int
	TTL          time.Duration
}

// IsExpired reports whether the item has outlived its TTL at now. Items
// without a TTL never expire.
func (i *CacheItem) IsExpired(now time.Time) bool {
	if i.TTL <= 0 {
		return false
	}
	return now.Sub(i.CreatedAt) > i.TTL
}

// Event is the payload handed to an EventPublisher.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Data      map[string]any    `json:"data,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Source    string            `json:"source"`
}

const (
	TopicCircuitStateChanged = "circuit.state_changed"
	TopicHealthSnapshot      = "health.snapshot"
	TopicPoolHealth          = "pool.health"
)
