package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisNamespace prefixes every key written by RedisStore.
	DefaultRedisNamespace = "clicktrail:"

	// maxUpdateRetries bounds optimistic WATCH/MULTI retries in Update.
	maxUpdateRetries = 16

	// scanBatch is the COUNT hint for SCAN in DeleteFunc.
	scanBatch = 256
)

// RedisStore implements Store on Redis. Use it when several worker
// processes share rate-limit state and markers.
type RedisStore struct {
	client    *redis.Client
	namespace string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Connection pool settings
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return NewRedisStoreFromClient(client, DefaultRedisNamespace), nil
}

// NewRedisStoreFromClient wraps an existing client. namespace is prepended
// to every key.
func NewRedisStoreFromClient(client *redis.Client, namespace string) *RedisStore {
	return &RedisStore{client: client, namespace: namespace}
}

// Get returns the value for key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.namespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

// Put stores value with an optional ttl (0 keeps it forever).
func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.namespace+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// CreateIfAbsent uses SET NX so only one caller creates the key.
func (s *RedisStore) CreateIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	created, err := s.client.SetNX(ctx, s.namespace+key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return created, nil
}

// Update runs fn under WATCH and commits with MULTI/EXEC, retrying when
// another client modified the key in between.
func (s *RedisStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	fullKey := s.namespace + key

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, fullKey).Bytes()
		if errors.Is(err, redis.Nil) {
			current = nil
		} else if err != nil {
			return err
		}

		next, ttl, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, fullKey, next, ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, fullKey)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}

	return ErrConflict
}

// DeleteFunc scans keys under prefix and deletes the matching ones.
// Each key is read and deleted under WATCH: a key rewritten between the read
// and the delete is left alone.
func (s *RedisStore) DeleteFunc(ctx context.Context, prefix string, match func(key string, value []byte) bool) (int, error) {
	deleted := 0
	iter := s.client.Scan(ctx, 0, s.namespace+prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		ok, err := s.deleteIfMatch(ctx, iter.Val(), match)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted++
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis scan: %w", err)
	}

	return deleted, nil
}

func (s *RedisStore) deleteIfMatch(ctx context.Context, fullKey string, match func(key string, value []byte) bool) (bool, error) {
	removed := false
	txf := func(tx *redis.Tx) error {
		value, err := tx.Get(ctx, fullKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil // expired between SCAN and GET
		}
		if err != nil {
			return err
		}

		if !match(strings.TrimPrefix(fullKey, s.namespace), value) {
			return nil
		}

		var del *redis.IntCmd
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			del = pipe.Del(ctx, fullKey)
			return nil
		})
		if err != nil {
			return err
		}
		removed = del.Val() > 0
		return nil
	}

	err := s.client.Watch(ctx, txf, fullKey)
	if errors.Is(err, redis.TxFailedErr) {
		// Rewritten concurrently; the new value is live.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis delete %s: %w", fullKey, err)
	}
	return removed, nil
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client.
// Use sparingly - prefer adding methods to RedisStore.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}
