package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// relationalSnapshot is the on-disk document written by the relational tier.
type relationalSnapshot struct {
	Nodes     map[string]*node  `json:"nodes"`
	Edges     map[string][]edge `json:"edges"`
	LastSaved time.Time         `json:"last_saved"`
}

// RelationalStore is the durable knowledge-graph tier: nodes hold opaque
// values and carry typed, weighted directed edges on their source node.
//
// Deleting a node scrubs every other node's outgoing list of edges pointing
// at it, so orphan edges never remain. When the graph is over capacity, the
// node with the lowest connection counter is evicted, ties broken by
// insertion order. The connection counter is bumped on both endpoints when
// an edge is created and is only an eviction-priority signal; see the node
// type for the double-counting caveat. The full graph is persisted after
// every mutation with the same atomic snapshot contract as the persistent
// tier.
type RelationalStore struct {
	mu       sync.Mutex
	logger   *slog.Logger
	maxNodes int
	path     string
	nodes    map[string]*node
	edges    map[string][]edge
	order    []string

	now func() time.Time
}

// NewRelationalStore creates the relational tier and attempts to load a
// prior graph from its snapshot file. A missing or corrupt file yields an
// empty graph; load failures are logged, never fatal.
func NewRelationalStore(cfg RelationalConfig, logger *slog.Logger) *RelationalStore {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	s := &RelationalStore{
		logger:   logger.With("tier", TierRelational.String()),
		maxNodes: cfg.MaxNodes,
		path:     cfg.KnowledgeGraphFile,
		nodes:    make(map[string]*node),
		edges:    make(map[string][]edge),
		now:      time.Now,
	}

	if err := ensureDir(s.path); err != nil {
		s.logger.Error("failed to prepare knowledge graph directory", "error", err)
		return s
	}

	var snap relationalSnapshot
	found, err := loadSnapshot(s.path, &snap)
	if err != nil {
		s.logger.Error("failed to load knowledge graph, starting empty", "path", s.path, "error", err)
		return s
	}
	if found {
		if snap.Nodes != nil {
			s.nodes = snap.Nodes
		}
		if snap.Edges != nil {
			s.edges = snap.Edges
		}
		s.rebuildOrder()
		s.logger.Info("loaded knowledge graph", "path", s.path, "nodes", len(s.nodes))
	}
	return s
}

// rebuildOrder reconstructs the eviction tie-break order after a load. The
// snapshot does not record insertion order, so nodes are ordered by creation
// time with the key as a deterministic fallback.
func (s *RelationalStore) rebuildOrder() {
	s.order = s.order[:0]
	for k := range s.nodes {
		s.order = append(s.order, k)
	}
	sort.Slice(s.order, func(i, j int) bool {
		a, b := s.nodes[s.order[i]], s.nodes[s.order[j]]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return s.order[i] < s.order[j]
	})
}

// Put creates or overwrites a node and flushes the graph. Overwriting an
// existing node replaces its value and timestamps but keeps its edges and
// connection counter.
func (s *RelationalStore) Put(_ context.Context, key string, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.nodes[key]; ok {
		existing.Value = value
		existing.Timestamp = now
		existing.LastAccessed = now
		existing.AccessCount = 0
		s.persistLocked()
		return true
	}

	if s.maxNodes > 0 && len(s.nodes) >= s.maxNodes {
		s.evictLeastConnectedLocked()
	}

	s.nodes[key] = &node{
		Value:        value,
		Timestamp:    now,
		LastAccessed: now,
	}
	if _, ok := s.edges[key]; !ok {
		s.edges[key] = nil
	}
	s.order = append(s.order, key)
	s.persistLocked()
	return true
}

// Get retrieves a node's value, bumping its access metadata.
func (s *RelationalStore) Get(_ context.Context, key string, def any) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[key]
	if !ok {
		return def
	}
	n.AccessCount++
	n.LastAccessed = s.now()
	return n.Value
}

// Delete removes a node, its outgoing edges, and every edge in the graph
// pointing at it, then flushes the graph.
func (s *RelationalStore) Delete(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[key]; !ok {
		return false
	}
	s.removeNodeLocked(key)
	s.persistLocked()
	return true
}

// Clear removes every node and edge and flushes the graph.
func (s *RelationalStore) Clear(_ context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make(map[string]*node)
	s.edges = make(map[string][]edge)
	s.order = nil
	s.persistLocked()
	s.logger.Info("cleared relational memory")
	return true
}

// Exists reports whether a node exists for key.
func (s *RelationalStore) Exists(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.nodes[key]
	return ok
}

// Keys returns all node keys.
func (s *RelationalStore) Keys(_ context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.nodes))
	for k := range s.nodes {
		keys = append(keys, k)
	}
	return keys
}

// AddRelationship appends a directed edge from one node to another and
// increments the connection counter on both endpoints. It returns false if
// either endpoint is missing.
func (s *RelationalStore) AddRelationship(_ context.Context, fromKey, toKey, relationType string, weight float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, fromOK := s.nodes[fromKey]
	to, toOK := s.nodes[toKey]
	if !fromOK || !toOK {
		s.logger.Debug("relationship endpoint missing", "from", fromKey, "to", toKey)
		return false
	}

	s.edges[fromKey] = append(s.edges[fromKey], edge{
		To:        toKey,
		Type:      relationType,
		Weight:    weight,
		Timestamp: s.now(),
	})
	from.Connections++
	to.Connections++
	s.persistLocked()
	return true
}

// Related returns the nodes reachable over the outgoing edges of key,
// optionally filtered by relationship type. An empty relationType matches
// every edge. The result is empty when the key has no outgoing edges.
func (s *RelationalStore) Related(_ context.Context, key, relationType string) []Related {
	s.mu.Lock()
	defer s.mu.Unlock()

	related := make([]Related, 0)
	for _, e := range s.edges[key] {
		if relationType == "" || e.Type == relationType {
			related = append(related, Related{
				Node:   e.To,
				Type:   e.Type,
				Weight: e.Weight,
			})
		}
	}
	return related
}

// removeNodeLocked deletes a node, its outgoing list, and all incoming
// edges via a full scan of every other outgoing list. Callers must hold
// s.mu and persist afterwards.
func (s *RelationalStore) removeNodeLocked(key string) {
	delete(s.edges, key)
	for other, list := range s.edges {
		kept := list[:0]
		for _, e := range list {
			if e.To != key {
				kept = append(kept, e)
			}
		}
		s.edges[other] = kept
	}

	delete(s.nodes, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// evictLeastConnectedLocked removes the node with the lowest connection
// counter, ties broken by insertion order. Callers must hold s.mu.
func (s *RelationalStore) evictLeastConnectedLocked() {
	if len(s.order) == 0 {
		return
	}

	victim := s.order[0]
	lowest := s.nodes[victim].Connections
	for _, k := range s.order[1:] {
		if s.nodes[k].Connections < lowest {
			victim = k
			lowest = s.nodes[k].Connections
		}
	}

	s.removeNodeLocked(victim)
	s.logger.Debug("evicted least connected node", "key", victim, "connections", lowest)
}

// persistLocked rewrites the full graph snapshot. Failures are logged and
// the in-memory state stands. Callers must hold s.mu.
func (s *RelationalStore) persistLocked() {
	snap := relationalSnapshot{
		Nodes:     s.nodes,
		Edges:     s.edges,
		LastSaved: s.now(),
	}
	if err := writeSnapshot(s.path, snap); err != nil {
		s.logger.Error("failed to save knowledge graph", "path", s.path, "error", err)
	}
}
