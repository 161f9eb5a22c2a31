// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/veilvote/veilvote/auth"
	"github.com/veilvote/veilvote/audit"
	"github.com/veilvote/veilvote/metrics"
	"github.com/veilvote/veilvote/middleware"
	"github.com/veilvote/veilvote/models"
	"github.com/veilvote/veilvote/ratelimit"
)

type AttestationHandler struct {
	deps Deps
}

func NewAttestationHandler(deps Deps) *AttestationHandler {
	return &AttestationHandler{deps: deps}
}

// Challenge handles POST /attestations/challenge
func (h *AttestationHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	subject := auth.HashIP(middleware.GetClientIP(r), h.deps.Cfg.AdminKeySalt)
	if err := h.deps.Limiter.Allow(r.Context(), subject); err != nil {
		middleware.ErrorWithCode(w, http.StatusTooManyRequests, models.ReasonRateLimited,
			"Too many failed attempts, try again later")
		return
	}

	token, ttl, err := h.deps.Attest.IssueNonce(r.Context())
	if err != nil {
		h.deps.Logger.Error("failed to issue challenge nonce", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to issue challenge")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ChallengeResponse{
		Nonce:      token,
		TTLSeconds: ttl,
	})
}

// Issue handles POST /attestations/issue. It consumes the challenge nonce,
// mints the attestation, and derives the caller's per-poll nullifier from
// the verification provider's subject reference. The subject reference is
// seen here and nowhere else; the vote path runs purely on the nullifier.
func (h *AttestationHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req models.IssueAttestationRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.PollID == "" || req.OptionID == "" || req.TimestampBucket == "" || req.Nonce == "" || req.SubjectRef == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest,
			"poll_id, option_id, timestamp_bucket, nonce, and subject_ref are required")
		return
	}

	subject := auth.HashSubject(req.SubjectRef, h.deps.Cfg.AdminKeySalt)
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

	nullifierHash := h.deps.Deriver.Derive(req.SubjectRef, req.PollID)
	token, ttl, err := h.deps.Attest.Issue(r.Context(), req.PollID, req.OptionID, req.TimestampBucket, nullifierHash, req.Nonce)
	if err != nil {
		// Used, expired, and never-issued nonces are indistinguishable
		// from the outside.
		h.deps.Limiter.Failure(r.Context(), subject, ratelimit.KindAuth)
		h.deps.Recorder.Rejection(r.Context(), audit.EventNonceConsume, models.ReasonNonceInvalid, req.PollID, subject)
		middleware.ErrorWithCode(w, http.StatusUnauthorized, models.ReasonNonceInvalid,
			"Invalid or expired challenge")
		return
	}

	h.deps.Limiter.Success(r.Context(), subject)
	metrics.AttestationsIssued.Inc()

	middleware.JSONResponse(w, http.StatusOK, models.IssueAttestationResponse{
		Attestation: token,
		Nullifier:   nullifierHash,
		TTLSeconds:  ttl,
	})
}
