// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the VeilVote API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(deps)

# Endpoints

Health and observability:

	GET /health
	GET /metrics

Poll management (admin, requires X-Admin-Key):

	POST /polls              - Create poll with options
	GET  /polls/{id}/admin   - Get poll details
	POST /polls/{id}/publish - Open for voting
	POST /polls/{id}/close   - Stop accepting votes

Voting (public, anonymous):

	GET  /polls/{id}              - Poll info and options
	POST /attestations/challenge  - One-time nonce
	POST /attestations/issue      - Attestation + derived nullifier
	POST /votes                   - Submit vote (bearer attestation)

Verification (public):

	GET  /public/receipt-pubkey        - Published signing key
	POST /public/verify-receipt        - Check receipt and inclusion proof
	GET  /public/merkle-root/{pollID}  - Current root + on-chain anchor

Analytics (admin bearer token):

	GET /analytics/polls/{id}/results - k-anonymous breakdowns

# Handler Initialization

The router creates handler instances from the shared dependency bundle:

	pollHandler := handlers.NewPollHandler(deps)
	voteHandler := handlers.NewVoteHandler(deps)

All handlers receive the database, configuration, and wired services.
*/
package router
