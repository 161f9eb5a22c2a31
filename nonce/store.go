// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package nonce

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs nonces with a shared short-TTL key-value store. GETDEL
// gives the atomic check-and-delete across processes.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Put(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.Set(ctx, key, "1", ttl).Err()
}

func (r *RedisStore) Take(ctx context.Context, key string) (bool, error) {
	_, err := r.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// sweepInterval bounds how long an expired, never-consumed nonce can
// linger in the memory store. Challenges are minted per unauthenticated
// request, so abandoned entries must not accumulate.
const sweepInterval = time.Minute

// MemoryStore is a single-process Store for tests and redis-less deployments.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]time.Time // key -> expiry
	nextSweep time.Time
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryStore) Put(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweepLocked(now)
	m.entries[key] = now.Add(ttl)
	return nil
}

func (m *MemoryStore) Take(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	// Deleted whether expired or live: a second caller must never see it.
	delete(m.entries, key)
	if m.now().After(expiry) {
		return false, nil
	}
	return true, nil
}

// sweepLocked drops expired entries. Runs at most once per sweepInterval,
// on the write path, so issuance pays the cleanup cost.
func (m *MemoryStore) sweepLocked(now time.Time) {
	if now.Before(m.nextSweep) {
		return
	}
	m.nextSweep = now.Add(sweepInterval)
	for key, expiry := range m.entries {
		if now.After(expiry) {
			delete(m.entries, key)
		}
	}
}
