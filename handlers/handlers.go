// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/veilvote/veilvote/analytics"
	"github.com/veilvote/veilvote/attest"
	"github.com/veilvote/veilvote/audit"
	"github.com/veilvote/veilvote/cliparse"
	"github.com/veilvote/veilvote/hasher"
	"github.com/veilvote/veilvote/merkle"
	"github.com/veilvote/veilvote/middleware"
	"github.com/veilvote/veilvote/models"
	"github.com/veilvote/veilvote/nonce"
	"github.com/veilvote/veilvote/nullifier"
	"github.com/veilvote/veilvote/ratelimit"
	"github.com/veilvote/veilvote/receipt"
)

// Deps bundles the services handlers are built from. Everything is wired
// once at startup; handlers hold no state of their own.
type Deps struct {
	DB       *sql.DB
	Cfg      cliparse.Config
	Attest   *attest.Service
	Deriver  *nullifier.Deriver
	Ledger   *merkle.Ledger
	Signer   *receipt.Signer
	Engine   *analytics.Engine
	Guard    *analytics.Guard
	Limiter  *ratelimit.Limiter
	Recorder *audit.Recorder
	Logger   *zap.Logger
}

// NewDeps wires the full service graph from configuration. The nonce and
// rate-limit stores are passed in so the caller decides between redis and
// in-process backends.
func NewDeps(conn *sql.DB, cfg cliparse.Config, nonceStore nonce.Store, rlStore ratelimit.Store, logger *zap.Logger) (Deps, error) {
	h, err := hasher.New(cfg.HasherStrategy, []byte(cfg.NullifierSecret))
	if err != nil {
		return Deps{}, fmt.Errorf("failed to build hasher: %w", err)
	}

	signer, err := receipt.NewSigner(cfg.ReceiptKeyHex)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to build receipt signer: %w", err)
	}

	engine, err := analytics.NewEngine(conn, cfg.AnalyticsNoiseKey,
		time.Duration(cfg.MinQuerySpanSeconds)*time.Second, cfg.DefaultK, logger)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to build analytics engine: %w", err)
	}

	nonces := nonce.NewService(nonceStore, time.Duration(cfg.NonceTTLSeconds)*time.Second, logger)

	return Deps{
		DB:      conn,
		Cfg:     cfg,
		Attest:  attest.NewService([]byte(cfg.AttestSecret), time.Duration(cfg.AttestTTLSeconds)*time.Second, h, nonces, logger),
		Deriver: nullifier.NewDeriver([]byte(cfg.NullifierSecret), h),
		Ledger:  merkle.NewLedger(conn, h, logger),
		Signer:  signer,
		Engine:  engine,
		Guard: analytics.NewGuard(cfg.QueryBudget,
			time.Duration(cfg.QueryWindowSeconds)*time.Second),
		Limiter:  ratelimit.NewLimiter(rlStore, logger),
		Recorder: audit.NewRecorder(conn, logger),
		Logger:   logger,
	}, nil
}

// getPoll loads one poll row. Returns sql.ErrNoRows when absent.
func getPoll(db *sql.DB, pollID string) (models.Poll, error) {
	var p models.Poll
	var desc sql.NullString
	err := db.QueryRow(`
		SELECT id, title, description, status, min_k, audience_size, merkle_root, leaf_count,
		       opened_at, ended_at, created_at
		FROM poll WHERE id = $1`, pollID).
		Scan(&p.ID, &p.Title, &desc, &p.Status, &p.MinK, &p.AudienceSize, &p.MerkleRoot,
			&p.LeafCount, &p.OpenedAt, &p.EndedAt, &p.CreatedAt)
	p.Description = desc.String
	return p, err
}

// getOptions loads a poll's options in insertion order.
func getOptions(db *sql.DB, pollID string) ([]models.Option, error) {
	rows, err := db.Query(`SELECT id, poll_id, label FROM option WHERE poll_id = $1 ORDER BY id`, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var options []models.Option
	for rows.Next() {
		var o models.Option
		if err := rows.Scan(&o.ID, &o.PollID, &o.Label); err != nil {
			return nil, err
		}
		options = append(options, o)
	}
	return options, rows.Err()
}

// optionBelongsToPoll checks that an option exists under the given poll.
func optionBelongsToPoll(db *sql.DB, pollID, optionID string) (bool, error) {
	var exists bool
	err := db.QueryRow(`SELECT EXISTS (SELECT 1 FROM option WHERE id = $1 AND poll_id = $2)`,
		optionID, pollID).Scan(&exists)
	return exists, err
}

// requireActivePoll writes the error response itself when the poll is
// missing or not accepting votes.
func requireActivePoll(w http.ResponseWriter, db *sql.DB, pollID string, logger *zap.Logger) (models.Poll, bool) {
	poll, err := getPoll(db, pollID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return poll, false
	}
	if err != nil {
		logger.Error("failed to query poll", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return poll, false
	}
	if poll.Status != models.StatusActive {
		middleware.ErrorWithCode(w, http.StatusConflict, models.ReasonPollNotActive, "Poll is not accepting votes")
		return poll, false
	}
	return poll, true
}
