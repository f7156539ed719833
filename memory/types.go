package memory

import "time"

// entry is the in-memory record kept by the ephemeral tier.
type entry struct {
	value       any
	createdAt   time.Time
	accessedAt  time.Time
	accessCount int
}

// entryMeta is the per-key bookkeeping persisted alongside values by the
// persistent tier. Timestamp is the creation time and drives FIFO eviction.
type entryMeta struct {
	Timestamp    time.Time `json:"timestamp"`
	AccessCount  int       `json:"access_count"`
	LastAccessed time.Time `json:"last_accessed"`
}

// Event is one item appended to a session in the session tier.
// Event IDs are taken from the composite key and are not required to be
// unique within a session; duplicates are retained.
type Event struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// sessionRecord tracks a session's lifecycle. A session expires once
// now - CreatedAt exceeds the configured age.
type sessionRecord struct {
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	EventCount   int       `json:"event_count"`
}

// node is one vertex of the relational tier's knowledge graph.
// Connections is an eviction-priority signal, not a true degree count:
// creating an edge increments the counter on both endpoints, so a node's
// counter double-counts edges it participates in from either side.
type node struct {
	Value        any       `json:"value"`
	Timestamp    time.Time `json:"timestamp"`
	AccessCount  int       `json:"access_count"`
	LastAccessed time.Time `json:"last_accessed"`
	Connections  int       `json:"connections"`
}

// edge is a directed, typed, weighted relation stored on its source node's
// outgoing list.
type edge struct {
	To        string    `json:"to"`
	Type      string    `json:"type"`
	Weight    float64   `json:"weight"`
	Timestamp time.Time `json:"timestamp"`
}

// Related is one result returned by RelationalStore.Related: a node reached
// by following an outgoing edge, with the edge's type and weight.
type Related struct {
	Node   string  `json:"node"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight"`
}

// TierStats reports per-tier statistics from Manager.Stats.
type TierStats struct {
	// KeyCount is the number of live keys in the tier.
	KeyCount int `json:"keys_count"`

	// Kind is the concrete store implementation name.
	Kind string `json:"type"`
}
