// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/veilvote/veilvote/attest"
	"github.com/veilvote/veilvote/audit"
	"github.com/veilvote/veilvote/auth"
	"github.com/veilvote/veilvote/metrics"
	"github.com/veilvote/veilvote/middleware"
	"github.com/veilvote/veilvote/models"
	"github.com/veilvote/veilvote/nullifier"
	"github.com/veilvote/veilvote/ratelimit"
)

type VoteHandler struct {
	deps Deps
}

func NewVoteHandler(deps Deps) *VoteHandler {
	return &VoteHandler{deps: deps}
}

// SubmitVote handles POST /votes. The bearer attestation authorizes
// exactly one vote for exactly this payload; the nullifier closes the
// double-vote door; the signed receipt and inclusion proof give the voter
// something to verify later. The request carries no identity.
func (h *VoteHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Attestation required")
		return
	}

	var req models.SubmitVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.PollID == "" || req.OptionID == "" || req.Nullifier == "" || req.TimestampBucket == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest,
			"poll_id, option_id, nullifier, and timestamp_bucket are required")
		return
	}

	// The limiter keys on the client address here; the vote path must not
	// learn a durable subject identifier.
	subject := auth.HashIP(middleware.GetClientIP(r), h.deps.Cfg.AdminKeySalt)
	if err := h.deps.Limiter.Allow(r.Context(), subject); err != nil {
		middleware.ErrorWithCode(w, http.StatusTooManyRequests, models.ReasonRateLimited,
			"Too many failed attempts, try again later")
		return
	}

	poll, ok := requireActivePoll(w, h.deps.DB, req.PollID, h.deps.Logger)
	if !ok {
		return
	}
	belongs, err := optionBelongsToPoll(h.deps.DB, poll.ID, req.OptionID)
	if err != nil {
		h.deps.Logger.Error("failed to check option", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !belongs {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Unknown option for this poll")
		return
	}

	if err := h.deps.Attest.Verify(r.Context(), token, req.PollID, req.OptionID, req.TimestampBucket, req.Nullifier); err != nil {
		h.rejectAttestation(w, r, err, req.PollID, subject)
		return
	}

	leafHash, leafIndex, newRoot, err := h.deps.Ledger.AppendVote(
		r.Context(), req.PollID, req.OptionID, req.Nullifier, req.TimestampBucket, req.Cohort)
	if err != nil {
		if errors.Is(err, nullifier.ErrAlreadyVoted) {
			metrics.VotesRejected.WithLabelValues(models.ReasonAlreadyVoted).Inc()
			h.deps.Recorder.Rejection(r.Context(), audit.EventVoteSubmit, models.ReasonAlreadyVoted, req.PollID, subject)
			middleware.ErrorWithCode(w, http.StatusConflict, models.ReasonAlreadyVoted,
				"A vote has already been recorded for this poll")
			return
		}
		h.deps.Logger.Error("failed to append vote", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record vote")
		return
	}

	rcpt := models.Receipt{
		LeafHash:  leafHash,
		PollID:    req.PollID,
		Nullifier: req.Nullifier,
		Timestamp: time.Now().Unix(),
	}
	if err := h.deps.Signer.Sign(&rcpt); err != nil {
		// The vote is already ledgered; a receipt signing failure must
		// not report the vote as rejected.
		h.deps.Logger.Error("failed to sign receipt", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Vote recorded but receipt unavailable")
		return
	}

	h.deps.Limiter.Success(r.Context(), subject)
	metrics.VotesAccepted.Inc()
	h.deps.Recorder.Record(r.Context(), audit.Event{
		EventType: audit.EventVoteSubmit,
		Result:    audit.ResultAccepted,
		PollID:    req.PollID,
	})
	h.deps.Logger.Info("vote recorded",
		zap.String("poll_id", req.PollID),
		zap.Int("leaf_index", leafIndex))

	middleware.JSONResponse(w, http.StatusCreated, models.SubmitVoteResponse{
		Success:    true,
		Receipt:    rcpt,
		MerkleRoot: newRoot,
		LeafIndex:  leafIndex,
	})
}

// rejectAttestation maps verification failures onto responses. Expiry is
// retriable with a fresh challenge; mismatch and bad signatures are fatal,
// audited, and scored heavily by the limiter.
func (h *VoteHandler) rejectAttestation(w http.ResponseWriter, r *http.Request, err error, pollID, subject string) {
	switch {
	case errors.Is(err, attest.ErrExpired):
		metrics.VotesRejected.WithLabelValues(models.ReasonAttestExpired).Inc()
		h.deps.Recorder.Rejection(r.Context(), audit.EventAttestVerify, models.ReasonAttestExpired, pollID, subject)
		middleware.ErrorWithCode(w, http.StatusUnauthorized, models.ReasonAttestExpired,
			"Attestation expired, restart the challenge flow")
	case errors.Is(err, attest.ErrPayloadMismatch):
		metrics.VotesRejected.WithLabelValues(models.ReasonAttestMismatch).Inc()
		h.deps.Limiter.Failure(r.Context(), subject, ratelimit.KindVerification)
		h.deps.Recorder.Rejection(r.Context(), audit.EventAttestVerify, models.ReasonAttestMismatch, pollID, subject)
		middleware.ErrorWithCode(w, http.StatusForbidden, models.ReasonAttestMismatch,
			"Attestation does not authorize this vote")
	default:
		metrics.VotesRejected.WithLabelValues(models.ReasonAttestBadSig).Inc()
		if _, lerr := h.deps.Limiter.Failure(r.Context(), subject, ratelimit.KindVerification); errors.Is(lerr, ratelimit.ErrLockedOut) {
			metrics.Lockouts.Inc()
		}
		h.deps.Recorder.Rejection(r.Context(), audit.EventAttestVerify, models.ReasonAttestBadSig, pollID, subject)
		middleware.ErrorWithCode(w, http.StatusForbidden, models.ReasonAttestBadSig,
			"Attestation signature invalid")
	}
}
