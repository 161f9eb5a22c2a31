// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package attest

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/veilvote/veilvote/hasher"
	"github.com/veilvote/veilvote/nonce"
)

const purposeVote = "attestation"

var (
	// ErrExpired is retriable: the client restarts the challenge flow.
	ErrExpired = errors.New("attestation expired")
	// ErrPayloadMismatch is fatal: the attestation was minted for a
	// different poll, option, or timestamp bucket.
	ErrPayloadMismatch = errors.New("attestation payload mismatch")
	// ErrSignatureInvalid is fatal and audited as a security event.
	ErrSignatureInvalid = errors.New("attestation signature invalid")
)

// Service issues and verifies short-lived authorizations that bridge "a real
// person completed verification" to "one vote may be cast". The token binds
// {pollID, votePayloadHash, issuedAt, ttl} and carries no identity.
type Service struct {
	secret []byte
	ttl    time.Duration
	h      hasher.Hasher
	nonces *nonce.Service
	logger *zap.Logger
}

func NewService(secret []byte, ttl time.Duration, h hasher.Hasher, nonces *nonce.Service, logger *zap.Logger) *Service {
	return &Service{secret: secret, ttl: ttl, h: h, nonces: nonces, logger: logger}
}

// IssueNonce starts the challenge flow.
func (s *Service) IssueNonce(ctx context.Context) (string, int, error) {
	return s.nonces.Issue(ctx, purposeVote)
}

// PayloadHash commits to the exact vote an attestation authorizes.
func (s *Service) PayloadHash(pollID, optionID, tsBucket string) string {
	return hex.EncodeToString(s.h.Sum([]byte(pollID), []byte(optionID), []byte(tsBucket)))
}

// Issue consumes the challenge nonce and mints the attestation token. The
// nonce consumption is the only stateful step; the token itself verifies
// statelessly. The caller's derived nullifier is bound into the token so
// it cannot be replayed within its lifetime under a different nullifier.
func (s *Service) Issue(ctx context.Context, pollID, optionID, tsBucket, nullifierHash, nonceToken string) (string, int, error) {
	if err := s.nonces.Consume(ctx, nonceToken, purposeVote); err != nil {
		return "", 0, err
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"poll_id":      pollID,
		"payload_hash": s.PayloadHash(pollID, optionID, tsBucket),
		"nullifier":    nullifierHash,
		"iat":          now.Unix(),
		"exp":          now.Add(s.ttl).Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign attestation: %w", err)
	}

	return token, int(s.ttl.Seconds()), nil
}

// Verify checks signature, lifetime, and payload binding against the claimed
// vote. A mismatch on any of poll, option, timestamp bucket, or nullifier is
// a hard failure: an attestation minted for one vote cannot be replayed
// against another. Expired attestations are rejected, never renewed.
func (s *Service) Verify(ctx context.Context, token, pollID, optionID, tsBucket, nullifierHash string) error {
	_ = ctx

	tok, err := jwt.Parse(token,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpired
		}
		return ErrSignatureInvalid
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return ErrSignatureInvalid
	}

	claimedPoll, _ := claims["poll_id"].(string)
	claimedHash, _ := claims["payload_hash"].(string)
	claimedNullifier, _ := claims["nullifier"].(string)

	if claimedPoll != pollID ||
		claimedHash != s.PayloadHash(pollID, optionID, tsBucket) ||
		claimedNullifier != nullifierHash {
		return ErrPayloadMismatch
	}

	return nil
}

// TTL reports the configured attestation lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }
