package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores payloads in Redis with native TTL expiry, shared
// across service replicas. Single-flight dedup stays per-process.
type RedisBackend struct {
	client *redis.Client
}

func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := b.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return payload, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if err := b.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (b *RedisBackend) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	removed := 0
	iter := b.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := b.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("redis del: %w", err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan: %w", err)
	}
	return removed, nil
}

// Sweep is a no-op: Redis expires entries natively.
func (b *RedisBackend) Sweep(context.Context) int { return 0 }

func (b *RedisBackend) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	count := 0
	iter := b.client.Scan(ctx, 0, "health:*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return count
}
