package memory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Ephemeral backend names accepted by EphemeralConfig.Backend.
const (
	// BackendMemory keeps the ephemeral tier in process memory (default).
	BackendMemory = "memory"

	// BackendRedis keeps the ephemeral tier in a Redis instance, with
	// expiry delegated to server-side TTLs.
	BackendRedis = "redis"
)

// Config is the top-level memory configuration. Each tier reads its own
// subsection; no tier consults another tier's settings.
type Config struct {
	Ephemeral  EphemeralConfig  `yaml:"ephemeral" json:"ephemeral"`
	Persistent PersistentConfig `yaml:"persistent" json:"persistent"`
	Session    SessionConfig    `yaml:"session" json:"session"`
	Relational RelationalConfig `yaml:"relational" json:"relational"`
}

// Validate checks every tier subsection and reports the first failure.
func (c *Config) Validate() error {
	if err := c.Ephemeral.Validate(); err != nil {
		return fmt.Errorf("ephemeral config: %w", err)
	}
	if err := c.Persistent.Validate(); err != nil {
		return fmt.Errorf("persistent config: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}
	if err := c.Relational.Validate(); err != nil {
		return fmt.Errorf("relational config: %w", err)
	}
	return nil
}

// ApplyDefaults fills unset fields on every tier subsection.
func (c *Config) ApplyDefaults() {
	c.Ephemeral.ApplyDefaults()
	c.Persistent.ApplyDefaults()
	c.Session.ApplyDefaults()
	c.Relational.ApplyDefaults()
}

// EphemeralConfig configures the ephemeral cache tier.
type EphemeralConfig struct {
	// Backend selects the storage backend: "memory" (default) or "redis".
	Backend string `yaml:"backend" json:"backend"`

	// MaxItems bounds the number of entries. Exceeding it triggers
	// least-recently-accessed eviction.
	MaxItems int `yaml:"max_items" json:"max_items"`

	// TTLSeconds is the entry time-to-live in seconds.
	TTLSeconds int `yaml:"ttl_seconds" json:"ttl_seconds"`

	// RedisURL is the connection string for the redis backend,
	// e.g. "redis://localhost:6379". Ignored by the memory backend.
	RedisURL string `yaml:"redis_url" json:"redis_url"`
}

// Validate checks the EphemeralConfig.
func (c *EphemeralConfig) Validate() error {
	switch c.Backend {
	case "", BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("%w: unknown ephemeral backend %q (must be one of: memory, redis)", ErrInvalidConfig, c.Backend)
	}
	if c.MaxItems < 0 {
		return fmt.Errorf("%w: ephemeral max_items cannot be negative, got %d", ErrInvalidConfig, c.MaxItems)
	}
	if c.TTLSeconds < 0 {
		return fmt.Errorf("%w: ephemeral ttl_seconds cannot be negative, got %d", ErrInvalidConfig, c.TTLSeconds)
	}
	return nil
}

// ApplyDefaults fills unset fields.
func (c *EphemeralConfig) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.MaxItems == 0 {
		c.MaxItems = 1000
	}
	if c.TTLSeconds == 0 {
		c.TTLSeconds = 3600
	}
	if c.Backend == BackendRedis && c.RedisURL == "" {
		c.RedisURL = "redis://localhost:6379"
	}
}

// PersistentConfig configures the durable key-value tier.
type PersistentConfig struct {
	// MaxItems bounds the number of entries. Exceeding it evicts the
	// oldest entries by creation time.
	MaxItems int `yaml:"max_items" json:"max_items"`

	// PersistenceFile is the JSON snapshot path. The parent directory is
	// created on construction if absent.
	PersistenceFile string `yaml:"persistence_file" json:"persistence_file"`
}

// Validate checks the PersistentConfig.
func (c *PersistentConfig) Validate() error {
	if c.MaxItems < 0 {
		return fmt.Errorf("%w: persistent max_items cannot be negative, got %d", ErrInvalidConfig, c.MaxItems)
	}
	if c.PersistenceFile == "" {
		return fmt.Errorf("%w: persistent persistence_file is required", ErrInvalidConfig)
	}
	return nil
}

// ApplyDefaults fills unset fields.
func (c *PersistentConfig) ApplyDefaults() {
	if c.MaxItems == 0 {
		c.MaxItems = 10000
	}
	if c.PersistenceFile == "" {
		c.PersistenceFile = "data/memory/persistent.json"
	}
}

// SessionConfig configures the session-scoped event tier.
type SessionConfig struct {
	// MaxSessions bounds the number of active sessions. Exceeding it
	// evicts the oldest session by creation time.
	MaxSessions int `yaml:"max_sessions" json:"max_sessions"`

	// SessionTTLHours is the session age limit in hours.
	SessionTTLHours int `yaml:"session_ttl_hours" json:"session_ttl_hours"`
}

// Validate checks the SessionConfig.
func (c *SessionConfig) Validate() error {
	if c.MaxSessions < 0 {
		return fmt.Errorf("%w: session max_sessions cannot be negative, got %d", ErrInvalidConfig, c.MaxSessions)
	}
	if c.SessionTTLHours < 0 {
		return fmt.Errorf("%w: session session_ttl_hours cannot be negative, got %d", ErrInvalidConfig, c.SessionTTLHours)
	}
	return nil
}

// ApplyDefaults fills unset fields.
func (c *SessionConfig) ApplyDefaults() {
	if c.MaxSessions == 0 {
		c.MaxSessions = 100
	}
	if c.SessionTTLHours == 0 {
		c.SessionTTLHours = 24
	}
}

// RelationalConfig configures the knowledge-graph tier.
type RelationalConfig struct {
	// MaxNodes bounds the number of graph nodes. Exceeding it evicts the
	// node with the lowest connection count.
	MaxNodes int `yaml:"max_nodes" json:"max_nodes"`

	// KnowledgeGraphFile is the JSON snapshot path for nodes and edges.
	KnowledgeGraphFile string `yaml:"knowledge_graph_file" json:"knowledge_graph_file"`
}

// Validate checks the RelationalConfig.
func (c *RelationalConfig) Validate() error {
	if c.MaxNodes < 0 {
		return fmt.Errorf("%w: relational max_nodes cannot be negative, got %d", ErrInvalidConfig, c.MaxNodes)
	}
	if c.KnowledgeGraphFile == "" {
		return fmt.Errorf("%w: relational knowledge_graph_file is required", ErrInvalidConfig)
	}
	return nil
}

// ApplyDefaults fills unset fields.
func (c *RelationalConfig) ApplyDefaults() {
	if c.MaxNodes == 0 {
		c.MaxNodes = 5000
	}
	if c.KnowledgeGraphFile == "" {
		c.KnowledgeGraphFile = "data/memory/knowledge_graph.json"
	}
}

// NewDefaultConfig returns a Config with every field set to its default.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// LoadConfig reads and parses a YAML configuration file, applies defaults
// to unset fields, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
