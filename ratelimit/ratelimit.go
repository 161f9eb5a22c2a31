// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ratelimit

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrLockedOut is returned once a subject's failure score crosses the
// block threshold. Callers translate it to HTTP 429.
var ErrLockedOut = errors.New("too many failed attempts")

// Attempt kinds. Verification failures score far heavier than ordinary
// auth failures, so a handful of bogus attestations locks a subject out
// while a few typos do not.
const (
	KindVerification = "verification"
	KindAuth         = "auth"
)

const (
	weightVerification = 50
	weightAuth         = 10
	blockThreshold     = 100

	scoreWindow = time.Hour
	lockoutTTL  = time.Hour
)

// Store keeps per-subject failure scores and lockout flags.
type Store interface {
	// IncrScore adds to a subject's score and returns the new total. The
	// first increment in a window starts the TTL clock.
	IncrScore(ctx context.Context, subject string, by int64, ttl time.Duration) (int64, error)
	// ResetScore clears a subject's score.
	ResetScore(ctx context.Context, subject string) error
	// Lock marks a subject as locked out for ttl.
	Lock(ctx context.Context, subject string, ttl time.Duration) error
	// Locked reports whether a subject is currently locked out.
	Locked(ctx context.Context, subject string) (bool, error)
}

// Limiter scores failed attempts per subject and locks the subject out
// when the score crosses the threshold. The score decays by expiry, not
// by success: only a verified success resets it.
type Limiter struct {
	store  Store
	logger *zap.Logger
}

func NewLimiter(store Store, logger *zap.Logger) *Limiter {
	return &Limiter{store: store, logger: logger}
}

// Allow reports whether a subject may proceed. Store errors fail open;
// an unreachable limiter backend must not take voting down with it.
func (l *Limiter) Allow(ctx context.Context, subject string) error {
	locked, err := l.store.Locked(ctx, subject)
	if err != nil {
		l.logger.Error("rate limit check failed, allowing request", zap.Error(err))
		return nil
	}
	if locked {
		return ErrLockedOut
	}
	return nil
}

// Failure records a failed attempt of the given kind and returns the new
// score. Crossing the threshold locks the subject out.
func (l *Limiter) Failure(ctx context.Context, subject, kind string) (int64, error) {
	weight := int64(weightAuth)
	if kind == KindVerification {
		weight = weightVerification
	}

	score, err := l.store.IncrScore(ctx, subject, weight, scoreWindow)
	if err != nil {
		l.logger.Error("failed to record rate limit failure", zap.Error(err))
		return 0, err
	}
	if score >= blockThreshold {
		if err := l.store.Lock(ctx, subject, lockoutTTL); err != nil {
			l.logger.Error("failed to lock subject", zap.Error(err))
			return score, err
		}
		l.logger.Warn("subject locked out",
			zap.String("kind", kind),
			zap.Int64("score", score))
		return score, ErrLockedOut
	}
	return score, nil
}

// Success clears a subject's score after a verified success. Lockouts are
// not cleared; they expire on their own.
func (l *Limiter) Success(ctx context.Context, subject string) {
	if err := l.store.ResetScore(ctx, subject); err != nil {
		l.logger.Error("failed to reset rate limit score", zap.Error(err))
	}
}
