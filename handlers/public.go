// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"net/http"

	"go.uber.org/zap"

	"github.com/veilvote/veilvote/anchor"
	"github.com/veilvote/veilvote/middleware"
	"github.com/veilvote/veilvote/models"
	"github.com/veilvote/veilvote/receipt"
)

// PublicHandler serves the independent-verification surface: the receipt
// public key, receipt checking, and per-poll Merkle roots with their
// on-chain anchors. Nothing here requires authentication.
type PublicHandler struct {
	deps Deps
}

func NewPublicHandler(deps Deps) *PublicHandler {
	return &PublicHandler{deps: deps}
}

// ReceiptPubkey handles GET /public/receipt-pubkey
func (h *PublicHandler) ReceiptPubkey(w http.ResponseWriter, r *http.Request) {
	middleware.JSONResponse(w, http.StatusOK, models.ReceiptPubkeyResponse{
		Algorithm: receipt.Algorithm,
		PublicKey: h.deps.Signer.PublicKeyHex(),
	})
}

// VerifyReceipt handles POST /public/verify-receipt. Signature checking is
// stateless; when the caller also supplies an inclusion proof and a root,
// the proof is checked against that root, and the root is matched against
// the poll's confirmed anchor if one exists.
func (h *PublicHandler) VerifyReceipt(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyReceiptRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Receipt.LeafHash == "" || req.Receipt.PollID == "" || req.Receipt.Signature == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "receipt is incomplete")
		return
	}

	resp := models.VerifyReceiptResponse{
		SignatureValid: receipt.Verify(req.Receipt, h.deps.Signer.PublicKeyHex()),
	}
	resp.Valid = resp.SignatureValid

	if req.MerkleProof != nil && req.MerkleRoot != "" {
		merkleValid := h.deps.Ledger.VerifyInclusion(req.Receipt.LeafHash, *req.MerkleProof, req.MerkleRoot)
		resp.MerkleValid = &merkleValid
		resp.Valid = resp.Valid && merkleValid

		a, err := anchor.Latest(r.Context(), h.deps.DB, req.Receipt.PollID)
		if err != nil {
			h.deps.Logger.Error("failed to query anchor", zap.Error(err))
		} else if a != nil && a.ChainHash == req.MerkleRoot {
			resp.OnChainAnchor = a.ExternalTxRef
		}
	}

	if !resp.Valid {
		h.deps.Logger.Warn("receipt verification failed",
			zap.String("poll_id", req.Receipt.PollID))
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}

// MerkleRoot handles GET /public/merkle-root/{pollID}
func (h *PublicHandler) MerkleRoot(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("pollID")

	poll, err := getPoll(h.deps.DB, pollID)
	if err == sql.ErrNoRows || (err == nil && poll.Status == models.StatusDraft) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		h.deps.Logger.Error("failed to query poll", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	resp := models.MerkleRootResponse{
		MerkleRoot: poll.MerkleRoot,
		LeafCount:  poll.LeafCount,
	}
	a, err := anchor.Latest(r.Context(), h.deps.DB, pollID)
	if err != nil {
		h.deps.Logger.Error("failed to query anchor", zap.Error(err))
	} else if a != nil {
		resp.OnChainAnchor = a.ExternalTxRef
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}
