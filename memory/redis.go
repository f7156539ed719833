package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces every ephemeral key stored in Redis so the tier
// can be cleared without touching unrelated data in the same instance.
const redisKeyPrefix = "memtier:ephemeral:"

// RedisEphemeralStore keeps the ephemeral tier in a Redis instance instead
// of process memory. Entry expiry is delegated to server-side TTLs, so lazy
// expiry checks and sweeps are unnecessary; capacity is enforced by the
// server's configured maxmemory eviction policy (allkeys-lru matches the
// in-memory backend's behavior) rather than client-side counting.
//
// The Store failure contract is unchanged: Redis errors are logged and
// surface as false or default-value results.
type RedisEphemeralStore struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// NewRedisEphemeralStore connects to the configured Redis instance and
// verifies the connection with a ping.
func NewRedisEphemeralStore(cfg EphemeralConfig, logger *slog.Logger) (*RedisEphemeralStore, error) {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 30 * time.Second
	opts.WriteTimeout = 5 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return &RedisEphemeralStore{
		client: client,
		logger: logger.With("tier", TierEphemeral.String(), "backend", BackendRedis),
		ttl:    time.Duration(cfg.TTLSeconds) * time.Second,
	}, nil
}

// Put stores a JSON-encoded value with the configured TTL.
func (s *RedisEphemeralStore) Put(ctx context.Context, key string, value any) bool {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("failed to encode value", "key", key, "error", err)
		return false
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, data, s.ttl).Err(); err != nil {
		s.logger.Error("failed to store value", "key", key, "error", err)
		return false
	}
	return true
}

// Get retrieves and decodes the value for key, or def when the key is
// absent, expired, or unreadable.
func (s *RedisEphemeralStore) Get(ctx context.Context, key string, def any) any {
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return def
	}
	if err != nil {
		s.logger.Error("failed to retrieve value", "key", key, "error", err)
		return def
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		s.logger.Error("failed to decode value", "key", key, "error", err)
		return def
	}
	return value
}

// Delete removes the entry for key.
func (s *RedisEphemeralStore) Delete(ctx context.Context, key string) bool {
	n, err := s.client.Del(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		s.logger.Error("failed to delete value", "key", key, "error", err)
		return false
	}
	return n > 0
}

// Clear removes every entry under the tier's key prefix.
func (s *RedisEphemeralStore) Clear(ctx context.Context) bool {
	keys, ok := s.scanKeys(ctx)
	if !ok {
		return false
	}
	if len(keys) > 0 {
		if err := s.client.Del(ctx, keys...).Err(); err != nil {
			s.logger.Error("failed to clear ephemeral memory", "error", err)
			return false
		}
	}
	s.logger.Info("cleared ephemeral memory")
	return true
}

// Exists reports whether a live entry exists for key.
func (s *RedisEphemeralStore) Exists(ctx context.Context, key string) bool {
	n, err := s.client.Exists(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		s.logger.Error("failed to check key", "key", key, "error", err)
		return false
	}
	return n > 0
}

// Keys returns all live keys, with the tier prefix stripped.
func (s *RedisEphemeralStore) Keys(ctx context.Context) []string {
	full, ok := s.scanKeys(ctx)
	if !ok {
		return []string{}
	}
	keys := make([]string, 0, len(full))
	for _, k := range full {
		keys = append(keys, k[len(redisKeyPrefix):])
	}
	return keys
}

// Close shuts down the underlying Redis connection.
func (s *RedisEphemeralStore) Close() error {
	return s.client.Close()
}

// scanKeys collects every key under the tier prefix with a cursor scan.
func (s *RedisEphemeralStore) scanKeys(ctx context.Context) ([]string, bool) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			s.logger.Error("failed to scan keys", "error", err)
			return nil, false
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, true
		}
	}
}
