// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types recorded in the security log.
const (
	EventAttestVerify  = "attestation_verify"
	EventVoteSubmit    = "vote_submit"
	EventNonceConsume  = "nonce_consume"
	EventAnalyticsRead = "analytics_read"
	EventRateLimit     = "rate_limit"
	EventAnchorCycle   = "anchor_cycle"
)

// Results an event can carry.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultLockout  = "lockout"
)

// Event is one row of the security log.
type Event struct {
	ID          string  `json:"id"`
	EventType   string  `json:"event_type"`
	Result      string  `json:"result"`
	ReasonCode  string  `json:"reason_code"`
	PollID      string  `json:"poll_id"`
	SubjectHash string  `json:"subject_hash"`
	Score       float64 `json:"score"`
	CreatedAt   string  `json:"created_at"`
}

// Recorder appends rows to the security_event table. Rows carry the poll,
// a reason code, and a hashed requester reference but never a vote choice,
// so the table can be handed to an auditor as-is.
type Recorder struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewRecorder(db *sql.DB, logger *zap.Logger) *Recorder {
	return &Recorder{db: db, logger: logger}
}

// Record writes one event. Failures are logged and swallowed; an audit
// write must never turn a rejected request into a 500.
func (r *Recorder) Record(ctx context.Context, e Event) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO security_event (id, event_type, result, reason_code, poll_id, subject_hash, score, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.NewString(), e.EventType, e.Result, e.ReasonCode, e.PollID, e.SubjectHash,
		e.Score, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		r.logger.Error("failed to record security event",
			zap.String("event_type", e.EventType),
			zap.String("poll_id", e.PollID),
			zap.Error(err))
		return
	}
	if e.Result != ResultAccepted {
		r.logger.Warn("security event",
			zap.String("event_type", e.EventType),
			zap.String("result", e.Result),
			zap.String("reason_code", e.ReasonCode),
			zap.String("poll_id", e.PollID))
	}
}

// Rejection is shorthand for the common case of logging a rejected request.
func (r *Recorder) Rejection(ctx context.Context, eventType, reasonCode, pollID, subjectHash string) {
	r.Record(ctx, Event{
		EventType:   eventType,
		Result:      ResultRejected,
		ReasonCode:  reasonCode,
		PollID:      pollID,
		SubjectHash: subjectHash,
	})
}

// RecentByType returns the newest events of one type, newest first.
func (r *Recorder) RecentByType(ctx context.Context, eventType string, limit int) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_type, result, reason_code, poll_id, subject_hash, COALESCE(score, 0), created_at
		 FROM security_event WHERE event_type = $1
		 ORDER BY created_at DESC, id LIMIT $2`, eventType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.EventType, &e.Result, &e.ReasonCode, &e.PollID, &e.SubjectHash, &e.Score, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
