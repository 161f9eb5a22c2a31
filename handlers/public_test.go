// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/veilvote/veilvote/models"
	"github.com/veilvote/veilvote/testutil"
)

func TestReceiptPubkey(t *testing.T) {
	deps := newTestDeps(t)
	h := NewPublicHandler(deps)

	w := httptest.NewRecorder()
	h.ReceiptPubkey(w, testutil.MakeRequest("GET", "/public/receipt-pubkey", nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.ReceiptPubkeyResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Algorithm != "secp256k1-sha256-der" {
		t.Errorf("Unexpected algorithm %q", resp.Algorithm)
	}
	if resp.PublicKey != deps.Signer.PublicKeyHex() {
		t.Error("Expected the signer's public key")
	}
}

func TestVerifyReceipt(t *testing.T) {
	deps := newTestDeps(t)
	h := NewPublicHandler(deps)
	pollID, _ := testutil.CreateTestPoll(t, deps.DB, deps.Cfg, models.StatusActive, 5)
	optionID := testutil.AddTestOption(t, deps.DB, pollID, "Option A")

	attestation, nullifier := issueAttestation(t, deps, pollID, optionID, "b1", "subject-1")
	w := castVote(t, deps, attestation, models.SubmitVoteRequest{
		PollID:          pollID,
		OptionID:        optionID,
		Nullifier:       nullifier,
		TimestampBucket: "b1",
	})
	testutil.AssertStatus(t, w, http.StatusCreated)
	var vote models.SubmitVoteResponse
	testutil.AssertJSON(t, w, &vote)

	proof, root, err := deps.Ledger.ProveInclusion(context.Background(), pollID, vote.Receipt.LeafHash)
	if err != nil {
		t.Fatalf("Failed to build inclusion proof: %v", err)
	}

	w = httptest.NewRecorder()
	h.VerifyReceipt(w, testutil.MakeRequest("POST", "/public/verify-receipt", models.VerifyReceiptRequest{
		Receipt:     vote.Receipt,
		MerkleProof: &proof,
		MerkleRoot:  root,
	}, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.VerifyReceiptResponse
	testutil.AssertJSON(t, w, &resp)
	if !resp.Valid || !resp.SignatureValid {
		t.Error("Expected a genuine receipt to verify")
	}
	if resp.MerkleValid == nil || !*resp.MerkleValid {
		t.Error("Expected the inclusion proof to verify")
	}
}

func TestVerifyReceiptRejectsTampering(t *testing.T) {
	deps := newTestDeps(t)
	h := NewPublicHandler(deps)
	pollID, _ := testutil.CreateTestPoll(t, deps.DB, deps.Cfg, models.StatusActive, 5)
	optionID := testutil.AddTestOption(t, deps.DB, pollID, "Option A")

	attestation, nullifier := issueAttestation(t, deps, pollID, optionID, "b1", "subject-1")
	w := castVote(t, deps, attestation, models.SubmitVoteRequest{
		PollID:          pollID,
		OptionID:        optionID,
		Nullifier:       nullifier,
		TimestampBucket: "b1",
	})
	testutil.AssertStatus(t, w, http.StatusCreated)
	var vote models.SubmitVoteResponse
	testutil.AssertJSON(t, w, &vote)

	tampered := vote.Receipt
	tampered.Nullifier = "0000000000000000000000000000000000000000000000000000000000000000"

	w = httptest.NewRecorder()
	h.VerifyReceipt(w, testutil.MakeRequest("POST", "/public/verify-receipt", models.VerifyReceiptRequest{
		Receipt: tampered,
	}, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.VerifyReceiptResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Valid || resp.SignatureValid {
		t.Error("Expected a tampered receipt to fail verification")
	}
}

func TestMerkleRootEndpoint(t *testing.T) {
	deps := newTestDeps(t)
	h := NewPublicHandler(deps)
	pollID, _ := testutil.CreateTestPoll(t, deps.DB, deps.Cfg, models.StatusActive, 5)
	optionID := testutil.AddTestOption(t, deps.DB, pollID, "Option A")

	attestation, nullifier := issueAttestation(t, deps, pollID, optionID, "b1", "subject-1")
	w := castVote(t, deps, attestation, models.SubmitVoteRequest{
		PollID:          pollID,
		OptionID:        optionID,
		Nullifier:       nullifier,
		TimestampBucket: "b1",
	})
	testutil.AssertStatus(t, w, http.StatusCreated)
	var vote models.SubmitVoteResponse
	testutil.AssertJSON(t, w, &vote)

	// A confirmed anchor for the current root is reported alongside it.
	_, err := deps.DB.Exec(`
		INSERT INTO vote_anchor (id, poll_id, chain_hash, external_tx_ref, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6)
	`, "anchor-1", pollID, vote.MerkleRoot, "0xfeedbeef", models.AnchorConfirmed, time.Now())
	if err != nil {
		t.Fatalf("Failed to insert anchor: %v", err)
	}

	req := testutil.MakeRequest("GET", "/public/merkle-root/"+pollID, nil, nil)
	req.SetPathValue("pollID", pollID)
	w = httptest.NewRecorder()
	h.MerkleRoot(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.MerkleRootResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.MerkleRoot != vote.MerkleRoot {
		t.Errorf("Expected root %s, got %s", vote.MerkleRoot, resp.MerkleRoot)
	}
	if resp.LeafCount != 1 {
		t.Errorf("Expected leaf count 1, got %d", resp.LeafCount)
	}
	if resp.OnChainAnchor != "0xfeedbeef" {
		t.Errorf("Expected anchor tx ref, got %q", resp.OnChainAnchor)
	}
}

func TestMerkleRootHidesDrafts(t *testing.T) {
	deps := newTestDeps(t)
	h := NewPublicHandler(deps)
	pollID, _ := testutil.CreateTestPoll(t, deps.DB, deps.Cfg, models.StatusDraft, 5)

	req := testutil.MakeRequest("GET", "/public/merkle-root/"+pollID, nil, nil)
	req.SetPathValue("pollID", pollID)
	w := httptest.NewRecorder()
	h.MerkleRoot(w, req)
	testutil.AssertStatus(t, w, http.StatusNotFound)
}
