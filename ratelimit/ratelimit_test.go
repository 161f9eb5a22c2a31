// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLimiter() (*Limiter, *MemoryStore) {
	store := NewMemoryStore()
	return NewLimiter(store, zap.NewNop()), store
}

func TestVerificationFailuresLockOut(t *testing.T) {
	limiter, _ := newTestLimiter()
	ctx := context.Background()

	// 50 + 50 = 100, at the threshold.
	score, err := limiter.Failure(ctx, "subj", KindVerification)
	require.NoError(t, err)
	assert.Equal(t, int64(50), score)
	require.NoError(t, limiter.Allow(ctx, "subj"))

	score, err = limiter.Failure(ctx, "subj", KindVerification)
	assert.ErrorIs(t, err, ErrLockedOut)
	assert.Equal(t, int64(100), score)

	assert.ErrorIs(t, limiter.Allow(ctx, "subj"), ErrLockedOut)
}

func TestAuthFailuresWeighLess(t *testing.T) {
	limiter, _ := newTestLimiter()
	ctx := context.Background()

	for i := 0; i < 9; i++ {
		_, err := limiter.Failure(ctx, "subj", KindAuth)
		require.NoError(t, err)
	}
	require.NoError(t, limiter.Allow(ctx, "subj"))

	// Tenth failure reaches 100.
	_, err := limiter.Failure(ctx, "subj", KindAuth)
	assert.ErrorIs(t, err, ErrLockedOut)
	assert.ErrorIs(t, limiter.Allow(ctx, "subj"), ErrLockedOut)
}

func TestSuccessResetsScoreButNotLockout(t *testing.T) {
	limiter, _ := newTestLimiter()
	ctx := context.Background()

	_, err := limiter.Failure(ctx, "subj", KindVerification)
	require.NoError(t, err)
	limiter.Success(ctx, "subj")

	// Score is back at zero, so a single verification failure no longer
	// reaches the threshold.
	score, err := limiter.Failure(ctx, "subj", KindVerification)
	require.NoError(t, err)
	assert.Equal(t, int64(50), score)

	// Once locked, success does not unlock.
	_, err = limiter.Failure(ctx, "subj", KindVerification)
	assert.ErrorIs(t, err, ErrLockedOut)
	limiter.Success(ctx, "subj")
	assert.ErrorIs(t, limiter.Allow(ctx, "subj"), ErrLockedOut)
}

func TestScoresAndLockoutsExpire(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	limiter := NewLimiter(store, zap.NewNop())
	ctx := context.Background()

	_, err := limiter.Failure(ctx, "subj", KindVerification)
	require.NoError(t, err)
	_, err = limiter.Failure(ctx, "subj", KindVerification)
	assert.ErrorIs(t, err, ErrLockedOut)

	// Past the lockout TTL the subject is allowed again and the score
	// window has restarted.
	now = now.Add(lockoutTTL + time.Minute)
	require.NoError(t, limiter.Allow(ctx, "subj"))
	score, err := limiter.Failure(ctx, "subj", KindVerification)
	require.NoError(t, err)
	assert.Equal(t, int64(50), score)
}

// TestStaleEntriesAreSwept covers the redis-less store: scores are keyed
// per hashed subject, so expired entries must not pile up.
func TestStaleEntriesAreSwept(t *testing.T) {
	limiter, store := newTestLimiter()
	ctx := context.Background()
	now := time.Now()
	store.now = func() time.Time { return now }

	for i := 0; i < 100; i++ {
		_, err := limiter.Failure(ctx, fmt.Sprintf("subj-%d", i), KindAuth)
		require.NoError(t, err)
	}
	_, err := limiter.Failure(ctx, "locked", KindVerification)
	require.NoError(t, err)
	_, err = limiter.Failure(ctx, "locked", KindVerification)
	assert.ErrorIs(t, err, ErrLockedOut)

	// Past the score window and lockout TTL, the first write clears
	// everything stale.
	now = now.Add(2 * time.Hour)
	_, err = limiter.Failure(ctx, "fresh", KindAuth)
	require.NoError(t, err)

	store.mu.Lock()
	scores, locks := len(store.scores), len(store.locks)
	store.mu.Unlock()
	assert.Equal(t, 1, scores)
	assert.Zero(t, locks)
}

func TestSubjectsAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		limiter.Failure(ctx, "noisy", KindVerification)
	}
	assert.ErrorIs(t, limiter.Allow(ctx, "noisy"), ErrLockedOut)
	assert.NoError(t, limiter.Allow(ctx, "quiet"))
}
