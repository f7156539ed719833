package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// EphemeralStore is the bounded, TTL-expiring cache tier. Entries older than
// the configured TTL are swept out before every Put and discovered lazily on
// Get and Exists; when the store still exceeds its capacity after a sweep,
// the least recently accessed entries are evicted until it fits.
//
// The store has no durability. A process restart loses all entries.
type EphemeralStore struct {
	mu       sync.Mutex
	logger   *slog.Logger
	maxItems int
	ttl      time.Duration
	entries  map[string]*entry

	now func() time.Time
}

// NewEphemeralStore creates the in-memory ephemeral tier from its
// configuration subsection. Defaults are applied to unset fields.
func NewEphemeralStore(cfg EphemeralConfig, logger *slog.Logger) *EphemeralStore {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &EphemeralStore{
		logger:   logger.With("tier", TierEphemeral.String()),
		maxItems: cfg.MaxItems,
		ttl:      time.Duration(cfg.TTLSeconds) * time.Second,
		entries:  make(map[string]*entry),
		now:      time.Now,
	}
}

// Put stores a value, stamping its creation time and resetting its access
// count. Expired entries are swept first; if the store then still exceeds
// capacity, least-recently-accessed entries are evicted.
func (s *EphemeralStore) Put(_ context.Context, key string, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()

	now := s.now()
	s.entries[key] = &entry{
		value:      value,
		createdAt:  now,
		accessedAt: now,
	}
	return true
}

// Get retrieves the value for key. An expired entry is deleted and def is
// returned. A hit updates the entry's access count and timestamp.
func (s *EphemeralStore) Get(_ context.Context, key string, def any) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return def
	}
	if s.expiredLocked(e) {
		delete(s.entries, key)
		return def
	}

	e.accessCount++
	e.accessedAt = s.now()
	return e.value
}

// Delete removes the entry for key.
func (s *EphemeralStore) Delete(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	return true
}

// Clear removes all entries.
func (s *EphemeralStore) Clear(_ context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*entry)
	s.logger.Info("cleared ephemeral memory")
	return true
}

// Exists reports whether a live entry exists for key. An expired entry is
// deleted as a side effect.
func (s *EphemeralStore) Exists(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	if s.expiredLocked(e) {
		delete(s.entries, key)
		return false
	}
	return true
}

// Keys returns all live keys after sweeping expired and over-capacity
// entries.
func (s *EphemeralStore) Keys(_ context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}

func (s *EphemeralStore) expiredLocked(e *entry) bool {
	return s.now().Sub(e.createdAt) > s.ttl
}

// sweepLocked removes expired entries, then evicts least-recently-accessed
// entries while the store exceeds its capacity. Callers must hold s.mu.
func (s *EphemeralStore) sweepLocked() {
	expired := 0
	for k, e := range s.entries {
		if s.expiredLocked(e) {
			delete(s.entries, k)
			expired++
		}
	}
	if expired > 0 {
		s.logger.Debug("swept expired entries", "count", expired)
	}

	if s.maxItems <= 0 || len(s.entries) <= s.maxItems {
		return
	}

	type access struct {
		key string
		at  time.Time
	}
	byAccess := make([]access, 0, len(s.entries))
	for k, e := range s.entries {
		byAccess = append(byAccess, access{key: k, at: e.accessedAt})
	}
	sort.Slice(byAccess, func(i, j int) bool {
		return byAccess[i].at.Before(byAccess[j].at)
	})

	evict := len(s.entries) - s.maxItems
	for _, a := range byAccess[:evict] {
		delete(s.entries, a.key)
	}
	s.logger.Debug("evicted least recently accessed entries", "count", evict)
}
