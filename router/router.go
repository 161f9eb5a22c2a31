// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/veilvote/veilvote/handlers"
	"github.com/veilvote/veilvote/metrics"
	"github.com/veilvote/veilvote/middleware"
)

func NewRouter(deps handlers.Deps) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	pollHandler := handlers.NewPollHandler(deps)
	attestationHandler := handlers.NewAttestationHandler(deps)
	voteHandler := handlers.NewVoteHandler(deps)
	publicHandler := handlers.NewPublicHandler(deps)
	analyticsHandler := handlers.NewAnalyticsHandler(deps)

	logged := middleware.WithLogging(deps.Logger)

	// Health check and metrics
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", metrics.Handler())

	// Poll management (admin operations)
	mux.HandleFunc("POST /polls", logged(pollHandler.CreatePoll))
	mux.HandleFunc("GET /polls/{id}/admin", logged(pollHandler.GetPollAdmin))
	mux.HandleFunc("POST /polls/{id}/publish", logged(pollHandler.PublishPoll))
	mux.HandleFunc("POST /polls/{id}/close", logged(pollHandler.ClosePoll))

	// Attestation flow and voting (public, anonymous)
	mux.HandleFunc("GET /polls/{id}", logged(pollHandler.GetPoll))
	mux.HandleFunc("POST /attestations/challenge", logged(attestationHandler.Challenge))
	mux.HandleFunc("POST /attestations/issue", logged(attestationHandler.Issue))
	mux.HandleFunc("POST /votes", logged(voteHandler.SubmitVote))

	// Independent verification (public)
	mux.HandleFunc("GET /public/receipt-pubkey", logged(publicHandler.ReceiptPubkey))
	mux.HandleFunc("POST /public/verify-receipt", logged(publicHandler.VerifyReceipt))
	mux.HandleFunc("GET /public/merkle-root/{pollID}", logged(publicHandler.MerkleRoot))

	// Analytics (admin bearer token)
	mux.HandleFunc("GET /analytics/polls/{id}/results", logged(analyticsHandler.GetResults))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("veilvote API v1"))
	})

	return mux
}
