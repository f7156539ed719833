package memory

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// SessionStore groups ordered events under session identifiers. Keys are
// composite, formatted as "<session-id>:<event-id>"; a key without the
// delimiter fails the operation instead of raising.
//
// Event IDs are not required to be unique within a session. Duplicates are
// retained, and Get and Delete act on the first match found in insertion
// order, which makes duplicate IDs ambiguous for retrieval and removal.
//
// A session expires once its age exceeds the configured limit. Expiry is
// checked lazily on Get, Exists, Keys and SessionEvents, and an expired
// session is removed entirely, events included, as a side effect of the
// check. When the number of sessions exceeds the maximum, the single oldest
// session by creation time is evicted.
type SessionStore struct {
	mu          sync.Mutex
	logger      *slog.Logger
	maxSessions int
	ttl         time.Duration
	sessions    map[string]*sessionRecord
	events      map[string][]Event

	now func() time.Time
}

// NewSessionStore creates the session tier from its configuration
// subsection. Defaults are applied to unset fields.
func NewSessionStore(cfg SessionConfig, logger *slog.Logger) *SessionStore {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		logger:      logger.With("tier", TierSession.String()),
		maxSessions: cfg.MaxSessions,
		ttl:         time.Duration(cfg.SessionTTLHours) * time.Hour,
		sessions:    make(map[string]*sessionRecord),
		events:      make(map[string][]Event),
		now:         time.Now,
	}
}

// splitKey parses a composite "<session-id>:<event-id>" key. The event ID
// may itself contain the delimiter; only the first occurrence splits.
func splitKey(key string) (sessionID, eventID string, ok bool) {
	return strings.Cut(key, ":")
}

// Put appends an event to the session named by the composite key, creating
// the session on its first event. A malformed key returns false.
func (s *SessionStore) Put(_ context.Context, key string, value any) bool {
	sessionID, eventID, ok := splitKey(key)
	if !ok {
		s.logger.Debug("malformed session key", "key", key)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, exists := s.sessions[sessionID]
	if !exists {
		rec = &sessionRecord{CreatedAt: now}
		s.sessions[sessionID] = rec
		s.events[sessionID] = nil
	}

	s.events[sessionID] = append(s.events[sessionID], Event{
		EventID:   eventID,
		Timestamp: now,
		Data:      value,
	})
	rec.EventCount++
	rec.LastAccessed = now

	if s.maxSessions > 0 && len(s.sessions) > s.maxSessions {
		s.evictOldestSessionLocked()
	}
	return true
}

// Get returns the payload of the first event matching the composite key, or
// def when the key is malformed, the session is absent or expired, or no
// event matches.
func (s *SessionStore) Get(_ context.Context, key string, def any) any {
	sessionID, eventID, ok := splitKey(key)
	if !ok {
		return def
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.sessions[sessionID]
	if !exists {
		return def
	}
	if s.expiredLocked(rec) {
		s.deleteSessionLocked(sessionID)
		return def
	}

	for _, ev := range s.events[sessionID] {
		if ev.EventID == eventID {
			rec.LastAccessed = s.now()
			return ev.Data
		}
	}
	return def
}

// Delete removes the first event matching the composite key. Removing a
// session's last event removes the session itself.
func (s *SessionStore) Delete(_ context.Context, key string) bool {
	sessionID, eventID, ok := splitKey(key)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	events, exists := s.events[sessionID]
	if !exists {
		return false
	}

	removed := false
	for i, ev := range events {
		if ev.EventID == eventID {
			s.events[sessionID] = append(events[:i], events[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		return false
	}

	if rec, ok := s.sessions[sessionID]; ok {
		rec.EventCount = len(s.events[sessionID])
	}
	if len(s.events[sessionID]) == 0 {
		s.deleteSessionLocked(sessionID)
	}
	return true
}

// Clear removes every session and event.
func (s *SessionStore) Clear(_ context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]*sessionRecord)
	s.events = make(map[string][]Event)
	s.logger.Info("cleared session memory")
	return true
}

// Exists reports whether a live event matches the composite key.
func (s *SessionStore) Exists(_ context.Context, key string) bool {
	sessionID, eventID, ok := splitKey(key)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.sessions[sessionID]
	if !exists {
		return false
	}
	if s.expiredLocked(rec) {
		s.deleteSessionLocked(sessionID)
		return false
	}

	for _, ev := range s.events[sessionID] {
		if ev.EventID == eventID {
			return true
		}
	}
	return false
}

// Keys returns composite keys for every event of every live session.
// Expired sessions found during the listing are removed.
func (s *SessionStore) Keys(_ context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepExpiredLocked()

	var keys []string
	for sessionID := range s.sessions {
		for _, ev := range s.events[sessionID] {
			keys = append(keys, sessionID+":"+ev.EventID)
		}
	}
	return keys
}

// SessionEvents returns the ordered events of a session, or nil when the
// session is absent or expired. The returned slice is a copy.
func (s *SessionStore) SessionEvents(_ context.Context, sessionID string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.sessions[sessionID]
	if !exists {
		return nil
	}
	if s.expiredLocked(rec) {
		s.deleteSessionLocked(sessionID)
		return nil
	}

	events := make([]Event, len(s.events[sessionID]))
	copy(events, s.events[sessionID])
	return events
}

// DeleteSession removes an entire session and its events.
func (s *SessionStore) DeleteSession(_ context.Context, sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sessionID]; !exists {
		return false
	}
	s.deleteSessionLocked(sessionID)
	return true
}

func (s *SessionStore) expiredLocked(rec *sessionRecord) bool {
	return s.now().Sub(rec.CreatedAt) > s.ttl
}

func (s *SessionStore) deleteSessionLocked(sessionID string) {
	delete(s.sessions, sessionID)
	delete(s.events, sessionID)
}

func (s *SessionStore) sweepExpiredLocked() {
	for sessionID, rec := range s.sessions {
		if s.expiredLocked(rec) {
			s.deleteSessionLocked(sessionID)
		}
	}
}

// evictOldestSessionLocked removes the single oldest session by creation
// time. Callers must hold s.mu.
func (s *SessionStore) evictOldestSessionLocked() {
	var oldestID string
	var oldestAt time.Time
	first := true
	for sessionID, rec := range s.sessions {
		if first || rec.CreatedAt.Before(oldestAt) {
			oldestID = sessionID
			oldestAt = rec.CreatedAt
			first = false
		}
	}
	if !first {
		s.deleteSessionLocked(oldestID)
		s.logger.Debug("evicted oldest session", "session_id", oldestID)
	}
}
