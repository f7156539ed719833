package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// persistentSnapshot is the on-disk document written by the persistent tier.
// It is plain indented JSON so the file can be inspected and loaded without
// the running process.
type persistentSnapshot struct {
	Memory    map[string]any        `json:"memory"`
	Metadata  map[string]*entryMeta `json:"metadata"`
	LastSaved time.Time             `json:"last_saved"`
}

// PersistentStore is the durable key-value tier. Every mutation rewrites the
// full snapshot to the configured file; an interrupted write leaves the
// previous snapshot intact. When the store is at capacity, the oldest entry
// by creation time is evicted before insertion, unlike the ephemeral tier's
// access-time ordering.
//
// A failed snapshot write is logged and does not roll back the in-memory
// mutation; memory and disk may diverge until the next successful write.
// Get updates access metadata without re-persisting, so access counters can
// likewise drift on crash.
type PersistentStore struct {
	mu       sync.Mutex
	logger   *slog.Logger
	maxItems int
	path     string
	values   map[string]any
	meta     map[string]*entryMeta

	now func() time.Time
}

// NewPersistentStore creates the persistent tier and attempts to load prior
// state from its snapshot file. A missing or corrupt file yields an empty
// store; load failures are logged, never fatal.
func NewPersistentStore(cfg PersistentConfig, logger *slog.Logger) *PersistentStore {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	s := &PersistentStore{
		logger:   logger.With("tier", TierPersistent.String()),
		maxItems: cfg.MaxItems,
		path:     cfg.PersistenceFile,
		values:   make(map[string]any),
		meta:     make(map[string]*entryMeta),
		now:      time.Now,
	}

	if err := ensureDir(s.path); err != nil {
		s.logger.Error("failed to prepare persistence directory", "error", err)
		return s
	}

	var snap persistentSnapshot
	found, err := loadSnapshot(s.path, &snap)
	if err != nil {
		s.logger.Error("failed to load persistent memory, starting empty", "path", s.path, "error", err)
		return s
	}
	if found {
		if snap.Memory != nil {
			s.values = snap.Memory
		}
		if snap.Metadata != nil {
			s.meta = snap.Metadata
		}
		s.logger.Info("loaded persistent memory", "path", s.path, "keys", len(s.values))
	}
	return s
}

// Put stores a value and flushes the snapshot. At capacity, the oldest
// entries by creation timestamp are evicted first.
func (s *PersistentStore) Put(_ context.Context, key string, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxItems > 0 && len(s.values) >= s.maxItems {
		s.evictOldestLocked()
	}

	now := s.now()
	s.values[key] = value
	s.meta[key] = &entryMeta{
		Timestamp:    now,
		LastAccessed: now,
	}
	s.persistLocked()
	return true
}

// Get retrieves the value for key, bumping its access metadata in memory
// only; the snapshot is not rewritten on reads.
func (s *PersistentStore) Get(_ context.Context, key string, def any) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	if !ok {
		return def
	}
	if m, ok := s.meta[key]; ok {
		m.AccessCount++
		m.LastAccessed = s.now()
	}
	return v
}

// Delete removes the entry for key and flushes the snapshot.
func (s *PersistentStore) Delete(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[key]; !ok {
		return false
	}
	delete(s.values, key)
	delete(s.meta, key)
	s.persistLocked()
	return true
}

// Clear removes all entries and flushes the snapshot.
func (s *PersistentStore) Clear(_ context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = make(map[string]any)
	s.meta = make(map[string]*entryMeta)
	s.persistLocked()
	s.logger.Info("cleared persistent memory")
	return true
}

// Exists reports whether an entry exists for key.
func (s *PersistentStore) Exists(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.values[key]
	return ok
}

// Keys returns all stored keys.
func (s *PersistentStore) Keys(_ context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys
}

// evictOldestLocked removes the oldest entries by creation timestamp until
// one slot is free. Callers must hold s.mu.
func (s *PersistentStore) evictOldestLocked() {
	if len(s.meta) == 0 {
		return
	}

	type created struct {
		key string
		at  time.Time
	}
	byCreation := make([]created, 0, len(s.meta))
	for k, m := range s.meta {
		byCreation = append(byCreation, created{key: k, at: m.Timestamp})
	}
	sort.Slice(byCreation, func(i, j int) bool {
		return byCreation[i].at.Before(byCreation[j].at)
	})

	evict := len(s.values) - s.maxItems + 1
	if evict > len(byCreation) {
		evict = len(byCreation)
	}
	for _, c := range byCreation[:evict] {
		delete(s.values, c.key)
		delete(s.meta, c.key)
	}
	s.logger.Debug("evicted oldest entries", "count", evict)
}

// persistLocked rewrites the full snapshot. Failures are logged and left
// behind as a durability gap; the in-memory state stands. Callers must hold
// s.mu.
func (s *PersistentStore) persistLocked() {
	snap := persistentSnapshot{
		Memory:    s.values,
		Metadata:  s.meta,
		LastSaved: s.now(),
	}
	if err := writeSnapshot(s.path, snap); err != nil {
		s.logger.Error("failed to save persistent memory", "path", s.path, "error", err)
	}
}
