// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package nonce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/veilvote/veilvote/auth"
)

// ErrInvalid covers every consume failure: unknown token, expired token,
// wrong purpose, already consumed. One error, so callers cannot be used as
// an oracle for which case occurred.
var ErrInvalid = errors.New("invalid or expired nonce")

// Store is the shared single-use token store. Take must be an atomic
// check-and-delete: of two concurrent calls for the same key, exactly one
// may observe true.
type Store interface {
	Put(ctx context.Context, key string, ttl time.Duration) error
	Take(ctx context.Context, key string) (bool, error)
}

// Service issues and consumes single-use, time-limited challenge tokens.
type Service struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

func NewService(store Store, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{store: store, ttl: ttl, logger: logger}
}

// Issue creates a fresh nonce for the given purpose and returns it with its
// lifetime in seconds.
func (s *Service) Issue(ctx context.Context, purpose string) (string, int, error) {
	token, err := auth.GenerateToken()
	if err != nil {
		return "", 0, fmt.Errorf("failed to issue nonce: %w", err)
	}

	if err := s.store.Put(ctx, key(purpose, token), s.ttl); err != nil {
		return "", 0, fmt.Errorf("failed to store nonce: %w", err)
	}

	return token, int(s.ttl.Seconds()), nil
}

// Consume verifies and invalidates a nonce in one atomic step. Any failure
// mode returns ErrInvalid.
func (s *Service) Consume(ctx context.Context, token, purpose string) error {
	ok, err := s.store.Take(ctx, key(purpose, token))
	if err != nil {
		s.logger.Error("nonce store failure", zap.Error(err))
		return ErrInvalid
	}
	if !ok {
		return ErrInvalid
	}
	return nil
}

// TTL reports the configured nonce lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

// The purpose is part of the key, so a nonce issued for one purpose never
// consumes under another.
func key(purpose, token string) string {
	return "nonce:" + purpose + ":" + token
}
