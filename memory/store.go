package memory

import (
	"context"
	"errors"
	"fmt"
)

// Common errors returned by memory construction and configuration.
// Runtime store operations never return errors; they signal failure
// through their boolean or default-value results.
var (
	// ErrInvalidConfig is returned when a configuration block fails validation.
	ErrInvalidConfig = errors.New("memory: invalid configuration")

	// ErrInvalidTier is returned when a Tier value is not recognized.
	ErrInvalidTier = errors.New("memory: invalid tier")

	// ErrBackendUnavailable is returned when a configured storage backend
	// cannot be reached during construction.
	ErrBackendUnavailable = errors.New("memory: backend unavailable")

	// ErrManagerClosed is returned when operating on a closed manager.
	ErrManagerClosed = errors.New("memory: manager closed")
)

// Tier identifies one of the four memory stores managed by a Manager.
//
// Each tier has a distinct retention strategy:
//
//   - TierEphemeral: bounded, TTL-expiring cache with LRU eviction
//   - TierPersistent: capacity-bounded map flushed to disk on every mutation
//   - TierSession: ordered event groups keyed by session, expiring by age
//   - TierRelational: durable knowledge graph with typed, weighted edges
//
// TierAll is accepted only by Manager.Clear and addresses every tier at once.
type Tier string

const (
	// TierEphemeral is the in-memory cache tier. Contents do not survive
	// a process restart.
	TierEphemeral Tier = "ephemeral"

	// TierPersistent is the durable key-value tier backed by a JSON
	// snapshot file.
	TierPersistent Tier = "persistent"

	// TierSession is the session-scoped event tier. Keys are composite,
	// formatted as "<session-id>:<event-id>".
	TierSession Tier = "session"

	// TierRelational is the durable knowledge-graph tier.
	TierRelational Tier = "relational"

	// TierAll addresses all four tiers. Only Manager.Clear accepts it.
	TierAll Tier = "all"
)

// String returns the string representation of the Tier.
func (t Tier) String() string {
	return string(t)
}

// IsValid returns true if the Tier names one of the four concrete stores.
// TierAll is not a concrete store and is not valid here.
func (t Tier) IsValid() bool {
	switch t {
	case TierEphemeral, TierPersistent, TierSession, TierRelational:
		return true
	default:
		return false
	}
}

// Validate returns an error if the Tier does not name a concrete store.
func (t Tier) Validate() error {
	if !t.IsValid() {
		return fmt.Errorf("%w: %q (must be one of: ephemeral, persistent, session, relational)", ErrInvalidTier, t)
	}
	return nil
}

// Tiers returns the four concrete tiers in their canonical order.
func Tiers() []Tier {
	return []Tier{TierEphemeral, TierPersistent, TierSession, TierRelational}
}

// Store is the contract every memory tier implements.
//
// Stored values are opaque JSON-serializable payloads; no store interprets
// them. All operations are safe for concurrent callers and never panic or
// return errors: a false or default-value result is the sole failure signal,
// with details on the store's log lines. Missing keys are not an error.
//
// Example:
//
//	if !store.Put(ctx, "campaign_42", summary) {
//	    // failure was logged by the store
//	}
//	v := store.Get(ctx, "campaign_42", nil)
type Store interface {
	// Put stores a value under key, creating or replacing the entry.
	Put(ctx context.Context, key string, value any) bool

	// Get retrieves the value for key, or def when the key is absent,
	// expired, or malformed.
	Get(ctx context.Context, key string, def any) any

	// Delete removes the entry for key. Returns false if no entry existed.
	Delete(ctx context.Context, key string) bool

	// Clear removes every entry from the store.
	Clear(ctx context.Context) bool

	// Exists reports whether a live (non-expired) entry exists for key.
	Exists(ctx context.Context, key string) bool

	// Keys returns all live keys in the store. Expired entries discovered
	// during the listing are removed as a side effect.
	Keys(ctx context.Context) []string
}
