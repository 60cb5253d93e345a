package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV is the minimal persistent key-value contract the session store needs.
// No transactions and no TTL are assumed of the backend.
type KV interface {
	Read(ctx context.Context, key string) ([]byte, bool, error)
	Write(ctx context.Context, key string, value []byte) error
}

// RedisConfig holds connection settings for the Redis-backed KV.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisKV implements KV on top of go-redis.
type RedisKV struct {
	rdb *redis.Client
}

// NewRedisKV creates a Redis KV and validates the connection with a ping.
func NewRedisKV(cfg RedisConfig) (*RedisKV, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisKV{rdb: rdb}, nil
}

// Read fetches a value; the second return reports key presence.
func (kv *RedisKV) Read(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := kv.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

// Write stores a value with no expiry; sessions outlive process restarts.
func (kv *RedisKV) Write(ctx context.Context, key string, value []byte) error {
	if err := kv.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (kv *RedisKV) Close() error {
	return kv.rdb.Close()
}

// MemKV is an in-process KV used by tests and credential-less dev runs.
type MemKV struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemKV returns an empty in-memory KV.
func NewMemKV() *MemKV {
	return &MemKV{items: make(map[string][]byte)}
}

func (kv *MemKV) Read(_ context.Context, key string) ([]byte, bool, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	data, ok := kv.items[key]
	if !ok {
		return nil, false, nil
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	return copied, true, nil
}

func (kv *MemKV) Write(_ context.Context, key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	copied := make([]byte, len(value))
	copy(copied, value)
	kv.items[key] = copied
	return nil
}
