// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	scoreKeyPrefix = "rl:score:"
	lockKeyPrefix  = "rl:lock:"
)

// RedisStore keeps scores in redis so lockouts hold across instances.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) IncrScore(ctx context.Context, subject string, by int64, ttl time.Duration) (int64, error) {
	key := scoreKeyPrefix + subject
	score, err := s.client.IncrBy(ctx, key, by).Result()
	if err != nil {
		return 0, err
	}
	// Only the first increment sets the TTL; later failures do not push
	// the window out.
	if score == by {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return score, err
		}
	}
	return score, nil
}

func (s *RedisStore) ResetScore(ctx context.Context, subject string) error {
	return s.client.Del(ctx, scoreKeyPrefix+subject).Err()
}

func (s *RedisStore) Lock(ctx context.Context, subject string, ttl time.Duration) error {
	return s.client.Set(ctx, lockKeyPrefix+subject, "1", ttl).Err()
}

func (s *RedisStore) Locked(ctx context.Context, subject string) (bool, error) {
	n, err := s.client.Exists(ctx, lockKeyPrefix+subject).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type scoreEntry struct {
	score     int64
	expiresAt time.Time
}

// sweepInterval bounds how long expired scores and lockouts linger in the
// memory store. Scores are keyed per hashed subject, so abandoned entries
// must not accumulate.
const sweepInterval = time.Minute

// MemoryStore is the single-process fallback used when no redis URL is
// configured, and by tests.
type MemoryStore struct {
	mu        sync.Mutex
	scores    map[string]scoreEntry
	locks     map[string]time.Time
	nextSweep time.Time
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scores: make(map[string]scoreEntry),
		locks:  make(map[string]time.Time),
		now:    time.Now,
	}
}

func (s *MemoryStore) IncrScore(_ context.Context, subject string, by int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)
	entry, ok := s.scores[subject]
	if !ok || now.After(entry.expiresAt) {
		entry = scoreEntry{expiresAt: now.Add(ttl)}
	}
	entry.score += by
	s.scores[subject] = entry
	return entry.score, nil
}

func (s *MemoryStore) ResetScore(_ context.Context, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scores, subject)
	return nil
}

func (s *MemoryStore) Lock(_ context.Context, subject string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks[subject] = s.now().Add(ttl)
	return nil
}

func (s *MemoryStore) Locked(_ context.Context, subject string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.locks[subject]
	if !ok {
		return false, nil
	}
	if s.now().After(until) {
		delete(s.locks, subject)
		return false, nil
	}
	return true, nil
}

// sweepLocked drops expired scores and lockouts. Runs at most once per
// sweepInterval, on the write path.
func (s *MemoryStore) sweepLocked(now time.Time) {
	if now.Before(s.nextSweep) {
		return
	}
	s.nextSweep = now.Add(sweepInterval)
	for subject, entry := range s.scores {
		if now.After(entry.expiresAt) {
			delete(s.scores, subject)
		}
	}
	for subject, until := range s.locks {
		if now.After(until) {
			delete(s.locks, subject)
		}
	}
}
