// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package anchor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/veilvote/veilvote/audit"
	"github.com/veilvote/veilvote/metrics"
	"github.com/veilvote/veilvote/models"
)

// Client submits a poll's Merkle root to an external chain and later
// checks whether the submission landed.
type Client interface {
	Submit(ctx context.Context, pollID, root string, leafCount int) (txRef string, err error)
	Confirm(ctx context.Context, txRef string) (bool, error)
}

// opTimeout bounds each chain call. A slow chain leaves the anchor row
// pending for the next cycle rather than stalling the pool.
const opTimeout = 30 * time.Second

// Service periodically anchors poll roots. Each cycle resumes pending
// anchors and opens new ones for polls whose root moved since the last
// anchored cycle. Rows move pending to confirmed or failed, never back.
type Service struct {
	db          *sql.DB
	client      Client
	pool        pond.Pool
	cron        *cron.Cron
	recorder    *audit.Recorder
	maxAttempts int
	logger      *zap.Logger
}

func NewService(db *sql.DB, client Client, recorder *audit.Recorder, maxAttempts int, logger *zap.Logger) *Service {
	return &Service{
		db:          db,
		client:      client,
		pool:        pond.NewPool(4),
		cron:        cron.New(),
		recorder:    recorder,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Start schedules anchor cycles on the given cron spec.
func (s *Service) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := s.RunCycle(context.Background()); err != nil {
			s.logger.Error("anchor cycle failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule anchor cycle: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and drains in-flight anchor work.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
	s.pool.StopAndWait()
}

// RunCycle performs one full anchoring pass and waits for it to finish.
func (s *Service) RunCycle(ctx context.Context) error {
	pending, err := s.pendingAnchors(ctx)
	if err != nil {
		return err
	}
	fresh, err := s.pollsNeedingAnchor(ctx)
	if err != nil {
		return err
	}

	group := s.pool.NewGroup()
	for _, a := range pending {
		a := a
		group.Submit(func() { s.advance(ctx, a) })
	}
	for _, p := range fresh {
		p := p
		group.Submit(func() { s.openAnchor(ctx, p) })
	}
	return group.Wait()
}

type anchorRow struct {
	id        string
	pollID    string
	chainHash string
	txRef     string
	attempts  int
	leafCount int
}

type pollRoot struct {
	pollID    string
	root      string
	leafCount int
}

func (s *Service) pendingAnchors(ctx context.Context) ([]anchorRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.poll_id, a.chain_hash, COALESCE(a.external_tx_ref, ''), a.attempts, p.leaf_count
		FROM vote_anchor a
		JOIN poll p ON p.id = a.poll_id
		WHERE a.status = $1`, models.AnchorPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending anchors: %w", err)
	}
	defer rows.Close()

	var pending []anchorRow
	for rows.Next() {
		var a anchorRow
		if err := rows.Scan(&a.id, &a.pollID, &a.chainHash, &a.txRef, &a.attempts, &a.leafCount); err != nil {
			return nil, fmt.Errorf("failed to scan anchor row: %w", err)
		}
		pending = append(pending, a)
	}
	return pending, rows.Err()
}

// pollsNeedingAnchor finds polls whose current root has no live anchor
// row. An unchanged root is skipped outright; anchoring it again would
// only burn gas.
func (s *Service) pollsNeedingAnchor(ctx context.Context) ([]pollRoot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, merkle_root, leaf_count FROM poll
		WHERE status IN ($1, $2) AND merkle_root != ''
		AND NOT EXISTS (
			SELECT 1 FROM vote_anchor a
			WHERE a.poll_id = poll.id AND a.chain_hash = poll.merkle_root AND a.status != $3
		)`, models.StatusActive, models.StatusEnded, models.AnchorFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to query polls needing anchor: %w", err)
	}
	defer rows.Close()

	var fresh []pollRoot
	for rows.Next() {
		var p pollRoot
		if err := rows.Scan(&p.pollID, &p.root, &p.leafCount); err != nil {
			return nil, fmt.Errorf("failed to scan poll root: %w", err)
		}
		fresh = append(fresh, p)
	}
	return fresh, rows.Err()
}

func (s *Service) openAnchor(ctx context.Context, p pollRoot) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vote_anchor (id, poll_id, chain_hash, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, 0, $5)`,
		id, p.pollID, p.root, models.AnchorPending, time.Now().UTC())
	if err != nil {
		s.logger.Error("failed to open anchor", zap.String("poll_id", p.pollID), zap.Error(err))
		return
	}
	s.advance(ctx, anchorRow{id: id, pollID: p.pollID, chainHash: p.root, leafCount: p.leafCount})
}

// advance pushes one anchor row forward: submit if it has no transaction
// yet, otherwise poll for confirmation. Chain errors leave the row
// pending; only exhausting submit attempts marks it failed.
func (s *Service) advance(ctx context.Context, a anchorRow) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if a.txRef == "" {
		if a.attempts >= s.maxAttempts {
			s.fail(ctx, a, "submit attempts exhausted")
			return
		}
		txRef, err := s.client.Submit(opCtx, a.pollID, a.chainHash, a.leafCount)
		a.attempts++
		if err != nil {
			s.logger.Warn("anchor submit failed",
				zap.String("poll_id", a.pollID),
				zap.Int("attempts", a.attempts),
				zap.Error(err))
			if a.attempts >= s.maxAttempts {
				s.fail(ctx, a, err.Error())
				return
			}
			s.exec(ctx, `UPDATE vote_anchor SET attempts = $1 WHERE id = $2`, a.attempts, a.id)
			return
		}
		a.txRef = txRef
		s.exec(ctx, `UPDATE vote_anchor SET external_tx_ref = $1, attempts = $2 WHERE id = $3`,
			txRef, a.attempts, a.id)
	}

	confirmed, err := s.client.Confirm(opCtx, a.txRef)
	if err != nil {
		s.logger.Warn("anchor confirm failed", zap.String("poll_id", a.pollID), zap.Error(err))
		return
	}
	if !confirmed {
		return
	}
	s.exec(ctx, `UPDATE vote_anchor SET status = $1, confirmed_at = $2 WHERE id = $3`,
		models.AnchorConfirmed, time.Now().UTC(), a.id)
	metrics.AnchorOutcomes.WithLabelValues(models.AnchorConfirmed).Inc()
	s.logger.Info("anchor confirmed",
		zap.String("poll_id", a.pollID),
		zap.String("tx_ref", a.txRef))
}

func (s *Service) fail(ctx context.Context, a anchorRow, reason string) {
	s.exec(ctx, `UPDATE vote_anchor SET status = $1 WHERE id = $2`, models.AnchorFailed, a.id)
	metrics.AnchorOutcomes.WithLabelValues(models.AnchorFailed).Inc()
	s.logger.Error("anchor failed",
		zap.String("poll_id", a.pollID),
		zap.String("reason", reason))
	s.recorder.Record(ctx, audit.Event{
		EventType:  audit.EventAnchorCycle,
		Result:     audit.ResultRejected,
		ReasonCode: models.ReasonAnchorUnreachable,
		PollID:     a.pollID,
	})
}

func (s *Service) exec(ctx context.Context, query string, args ...any) {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		s.logger.Error("anchor state update failed", zap.Error(err))
	}
}

// Latest returns a poll's most recent confirmed anchor, if any.
func Latest(ctx context.Context, db *sql.DB, pollID string) (*models.VoteAnchor, error) {
	var a models.VoteAnchor
	var txRef sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT id, poll_id, chain_hash, external_tx_ref, status, attempts, created_at, confirmed_at
		FROM vote_anchor
		WHERE poll_id = $1 AND status = $2
		ORDER BY created_at DESC LIMIT 1`, pollID, models.AnchorConfirmed).
		Scan(&a.ID, &a.PollID, &a.ChainHash, &txRef, &a.Status, &a.Attempts, &a.CreatedAt, &a.ConfirmedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest anchor: %w", err)
	}
	a.ExternalTxRef = txRef.String
	return &a, nil
}
