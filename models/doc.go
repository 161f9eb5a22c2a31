// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - CreatePollRequest: title, description, options, min_k, audience_size
  - ChallengeRequest: device_id
  - IssueAttestationRequest: poll_id, option_id, timestamp_bucket, nonce, subject_ref
  - SubmitVoteRequest: poll_id, option_id, nullifier, timestamp_bucket
  - VerifyReceiptRequest: receipt, optional merkle_proof and merkle_root

# Response Types

Types for JSON responses:

  - CreatePollResponse: poll_id, admin_key, options
  - ChallengeResponse: nonce, ttl
  - IssueAttestationResponse: attestation, nullifier, ttl
  - SubmitVoteResponse: success, receipt, merkle_root, leaf_index
  - ReceiptPubkeyResponse / VerifyReceiptResponse / MerkleRootResponse
  - AnalyticsResult: cohort buckets with suppression applied
  - ErrorResponse: error, code, message

# Domain Types

Internal data structures:

  - Poll: poll metadata, lifecycle state, current merkle root
  - Option: voting option with label
  - Receipt: signed proof of ledger inclusion
  - MerkleProof: sibling path for inclusion verification
  - VoteAnchor: one external anchoring cycle for a poll
  - CohortBucket: one aggregate cell, possibly suppressed

# Constants

Poll status values:

	StatusDraft     = "draft"
	StatusScheduled = "scheduled"
	StatusActive    = "active"
	StatusEnded     = "ended"
	StatusArchived  = "archived"

Anchor status values (status transitions pending to confirmed or failed,
never backward):

	AnchorPending   = "pending"
	AnchorConfirmed = "confirmed"
	AnchorFailed    = "failed"

Reason codes (Reason*) name every rejection carried on the audit trail and
in error responses, so clients and auditors share one taxonomy.
*/
package models
