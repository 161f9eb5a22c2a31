// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with structured request logging and latency metrics:

	logged := middleware.WithLogging(logger)
	mux.HandleFunc("POST /votes", logged(handler))

Logs method, matched route, status, and duration_ms, and feeds the
request duration histogram.

# CORS Middleware

Enable cross-origin requests for frontend access:

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

# JSON Helpers

Write JSON responses:

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")
	middleware.ErrorWithCode(w, http.StatusConflict, models.ReasonAlreadyVoted, "message")

Parse JSON request bodies:

	var req models.SubmitVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

# Auth Helpers

BearerToken pulls the attestation or admin token out of the
Authorization header. GetClientIP resolves the original client address
behind proxies; its hash keys the failure limiter.
*/
package middleware
