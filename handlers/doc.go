// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the VeilVote API.

# Handler Types

Each handler is a struct built from the shared Deps bundle:

  - PollHandler: Poll lifecycle (create, publish, close)
  - AttestationHandler: Challenge nonces and vote attestations
  - VoteHandler: Anonymous vote submission with receipts
  - PublicHandler: Receipt and ledger verification, no auth
  - AnalyticsHandler: k-anonymous result breakdowns

Handlers are created via constructor functions that accept Deps:

	voteHandler := handlers.NewVoteHandler(deps)

# Poll Lifecycle

Polls progress draft → active → ended

	POST /polls              → CreatePoll (returns admin_key)
	POST /polls/{id}/publish → PublishPoll (rejects audiences below k)
	POST /polls/{id}/close   → ClosePoll

Admin operations require the X-Admin-Key header.

# Voting Flow

	POST /attestations/challenge → Challenge (returns one-time nonce)
	POST /attestations/issue     → Issue (consumes nonce, returns
	                               attestation + derived nullifier)
	POST /votes                  → SubmitVote (bearer attestation,
	                               no identity fields)

The subject reference from the external verification provider is seen
only by Issue; the vote endpoint runs purely on the nullifier. A vote
response carries a signed receipt and the new Merkle root.

# Verification

	GET  /public/receipt-pubkey      → published signing key
	POST /public/verify-receipt      → check a receipt (and optionally an
	                                   inclusion proof) offline-style
	GET  /public/merkle-root/{pollID} → current root + on-chain anchor

# Analytics

	GET /analytics/polls/{id}/results?breakdown_by=option,cohort

Requires the admin bearer token. Buckets below the poll's k threshold
come back suppressed; budget and overlap violations are refused with
distinct reason codes.
*/
package handlers
