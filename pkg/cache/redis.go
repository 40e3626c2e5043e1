package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps JSON-encoded values under a key prefix and relies on Redis
// expiry for TTL.
type RedisStore[V any] struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ Store[string] = (*RedisStore[string])(nil)

func NewRedisStore[V any](client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore[V] {
	return &RedisStore[V]{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStore[V]) key(k string) string {
	return r.prefix + k
}

func (r *RedisStore[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var value V
	if err := json.Unmarshal(data, &value); err != nil {
		return zero, false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return value, true, nil
}

func (r *RedisStore[V]) Set(ctx context.Context, key string, value V) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, r.key(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore[V]) Invalidate(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Clear removes every key under the store prefix.
func (r *RedisStore[V]) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("redis scan %s: %w", r.prefix, err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (r *RedisStore[V]) TTL() time.Duration {
	return r.ttl
}

// RedisLedger claims keys with SETNX so claims hold across instances.
type RedisLedger struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
}

var _ Ledger = (*RedisLedger)(nil)

func NewRedisLedger(client redis.UniversalClient, prefix string, retention time.Duration) *RedisLedger {
	return &RedisLedger{client: client, prefix: prefix, retention: retention}
}

func (l *RedisLedger) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+key, 1, l.retention).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

func (l *RedisLedger) Release(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
