package memory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
)

// Option configures a Manager.
type Option func(*managerOptions)

type managerOptions struct {
	logger *slog.Logger
	id     string
}

// WithLogger sets the structured logger used by the manager and every store
// it constructs. Defaults to a text handler on stderr.
func WithLogger(logger *slog.Logger) Option {
	return func(o *managerOptions) {
		o.logger = logger
	}
}

// WithID sets the manager instance identifier carried on log lines and
// trace attributes. A random UUID is generated when unset.
func WithID(id string) Option {
	return func(o *managerOptions) {
		o.id = id
	}
}

// Manager is the façade over the four memory tiers. It dispatches operations
// by Tier and aggregates statistics; each store independently manages its
// own locking, expiry, and persistence.
//
// An unrecognized tier is a local failure: the operation logs the condition
// and returns a false or default result, it never errors to the caller.
type Manager struct {
	id     string
	logger *slog.Logger

	ephemeral  Store
	persistent *PersistentStore
	session    *SessionStore
	relational *RelationalStore

	closeMu sync.Mutex
	closed  bool
}

// NewManager wires all four stores from a single configuration, each tier
// reading its own subsection. A nil config uses defaults. Construction is
// the only path that returns an error; it fails on invalid configuration or
// an unreachable ephemeral backend.
func NewManager(cfg *Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	} else {
		cfg.ApplyDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := managerOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if options.id == "" {
		options.id = uuid.NewString()
	}

	logger := options.logger.With("component", "memtier", "manager_id", options.id)

	var ephemeral Store
	switch cfg.Ephemeral.Backend {
	case BackendRedis:
		redisStore, err := NewRedisEphemeralStore(cfg.Ephemeral, logger)
		if err != nil {
			return nil, fmt.Errorf("ephemeral redis backend: %w", err)
		}
		ephemeral = redisStore
	default:
		ephemeral = NewEphemeralStore(cfg.Ephemeral, logger)
	}

	m := &Manager{
		id:         options.id,
		logger:     logger,
		ephemeral:  ephemeral,
		persistent: NewPersistentStore(cfg.Persistent, logger),
		session:    NewSessionStore(cfg.Session, logger),
		relational: NewRelationalStore(cfg.Relational, logger),
	}
	logger.Info("memory manager initialized", "ephemeral_backend", cfg.Ephemeral.Backend)
	return m, nil
}

// ID returns the manager instance identifier.
func (m *Manager) ID() string {
	return m.id
}

// Ephemeral returns the ephemeral tier.
func (m *Manager) Ephemeral() Store {
	return m.ephemeral
}

// Persistent returns the persistent tier.
func (m *Manager) Persistent() *PersistentStore {
	return m.persistent
}

// Session returns the session tier, exposing its session-level extensions.
func (m *Manager) Session() *SessionStore {
	return m.session
}

// Relational returns the relational tier, exposing its graph extensions.
func (m *Manager) Relational() *RelationalStore {
	return m.relational
}

// storeFor maps a Tier to its store. It returns false for TierAll and
// unknown tiers.
func (m *Manager) storeFor(tier Tier) (Store, bool) {
	switch tier {
	case TierEphemeral:
		return m.ephemeral, true
	case TierPersistent:
		return m.persistent, true
	case TierSession:
		return m.session, true
	case TierRelational:
		return m.relational, true
	default:
		return nil, false
	}
}

// Store puts a value into the named tier. An unknown tier logs and returns
// false.
func (m *Manager) Store(ctx context.Context, key string, value any, tier Tier) bool {
	store, ok := m.storeFor(tier)
	if !ok {
		m.logger.Error("unknown memory tier", "tier", tier.String(), "operation", "store")
		return false
	}
	return store.Put(ctx, key, value)
}

// Retrieve gets a value from the named tier, or def when the key is absent
// or the tier is unknown.
func (m *Manager) Retrieve(ctx context.Context, key string, def any, tier Tier) any {
	store, ok := m.storeFor(tier)
	if !ok {
		m.logger.Error("unknown memory tier", "tier", tier.String(), "operation", "retrieve")
		return def
	}
	return store.Get(ctx, key, def)
}

// Delete removes a key from the named tier. An unknown tier logs and
// returns false.
func (m *Manager) Delete(ctx context.Context, key string, tier Tier) bool {
	store, ok := m.storeFor(tier)
	if !ok {
		m.logger.Error("unknown memory tier", "tier", tier.String(), "operation", "delete")
		return false
	}
	return store.Delete(ctx, key)
}

// Clear empties the named tier, or every tier for TierAll. Clearing all
// tiers attempts each one even after a failure and succeeds only if every
// individual clear succeeded.
func (m *Manager) Clear(ctx context.Context, tier Tier) bool {
	if tier == TierAll {
		ok := true
		for _, t := range Tiers() {
			store, _ := m.storeFor(t)
			if !store.Clear(ctx) {
				ok = false
			}
		}
		return ok
	}

	store, ok := m.storeFor(tier)
	if !ok {
		m.logger.Error("unknown memory tier", "tier", tier.String(), "operation", "clear")
		return false
	}
	return store.Clear(ctx)
}

// Stats returns per-tier key counts and store kinds.
func (m *Manager) Stats(ctx context.Context) map[Tier]TierStats {
	stats := make(map[Tier]TierStats, len(Tiers()))
	for _, t := range Tiers() {
		store, _ := m.storeFor(t)
		stats[t] = TierStats{
			KeyCount: len(store.Keys(ctx)),
			Kind:     fmt.Sprintf("%T", store),
		}
	}
	return stats
}

// Close releases backend resources held by the tiers. It is idempotent and
// safe to call multiple times.
func (m *Manager) Close() error {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()

	if m.closed {
		return nil
	}

	if closer, ok := m.ephemeral.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("failed to close ephemeral backend: %w", err)
		}
	}
	m.closed = true
	return nil
}
