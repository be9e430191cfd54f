package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/library/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

const defaultDedupKeyPrefix = "command:dedup:"

// RedisDedupStore implements DedupStore using Redis. Suitable for
// deployments where several consumer instances share dedup state.
type RedisDedupStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisDedupStore creates a new Redis-based dedup store
func NewRedisDedupStore(cfg RedisConfig) (*RedisDedupStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisDedupStore{
		client:    client,
		keyPrefix: defaultDedupKeyPrefix,
	}, nil
}

// NewRedisDedupStoreWithClient creates a store with an existing Redis client
func NewRedisDedupStoreWithClient(client *redis.Client, keyPrefix string) *RedisDedupStore {
	if keyPrefix == "" {
		keyPrefix = defaultDedupKeyPrefix
	}
	return &RedisDedupStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed marks a dedup key as committed with a TTL.
// SETNX makes the check-and-set a single atomic operation.
func (s *RedisDedupStore) MarkProcessed(ctx context.Context, dedupKey string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetNX(ctx, s.keyPrefix+dedupKey, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark command as processed: %w", err)
	}
	return result, nil
}

// IsProcessed checks whether a dedup key was already committed
func (s *RedisDedupStore) IsProcessed(ctx context.Context, dedupKey string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.keyPrefix+dedupKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check dedup key: %w", err)
	}
	return exists > 0, nil
}

// Close closes the Redis client
func (s *RedisDedupStore) Close() error {
	return s.client.Close()
}

// Ensure RedisDedupStore implements DedupStore
var _ shared.DedupStore = (*RedisDedupStore)(nil)
