// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"crypto/subtle"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/veilvote/veilvote/analytics"
	"github.com/veilvote/veilvote/audit"
	"github.com/veilvote/veilvote/auth"
	"github.com/veilvote/veilvote/metrics"
	"github.com/veilvote/veilvote/middleware"
	"github.com/veilvote/veilvote/models"
)

type AnalyticsHandler struct {
	deps Deps
}

func NewAnalyticsHandler(deps Deps) *AnalyticsHandler {
	return &AnalyticsHandler{deps: deps}
}

// GetResults handles GET /analytics/polls/{id}/results?breakdown_by=...
// Every refusal here is deliberate and explicit: privacy checks fail the
// whole query rather than quietly returning weakened numbers.
func (h *AnalyticsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.deps.Cfg.AdminToken)) != 1 {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid analytics token")
		return
	}

	pollID := r.PathValue("id")
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

	dimsParam := r.URL.Query().Get("breakdown_by")
	if dimsParam == "" {
		dimsParam = "option"
	}
	dims := strings.Split(dimsParam, ",")
	for i := range dims {
		dims[i] = strings.TrimSpace(dims[i])
	}

	// The budget keys on who holds the token, not the token value; the
	// same analyst probing from two addresses still shares one budget.
	requester := auth.HashSubject(token, h.deps.Cfg.AdminKeySalt)
	if err := h.deps.Guard.Admit(requester, pollID, dims); err != nil {
		switch {
		case errors.Is(err, analytics.ErrBudgetExceeded):
			h.deps.Recorder.Rejection(r.Context(), audit.EventAnalyticsRead, models.ReasonBudgetExceeded, pollID, requester)
			middleware.ErrorWithCode(w, http.StatusTooManyRequests, models.ReasonBudgetExceeded,
				"Query budget exhausted for this window")
		case errors.Is(err, analytics.ErrQueryOverlap):
			h.deps.Recorder.Rejection(r.Context(), audit.EventAnalyticsRead, models.ReasonQueryOverlap, pollID, requester)
			middleware.ErrorWithCode(w, http.StatusTooManyRequests, models.ReasonQueryOverlap,
				"Query overlaps a recent breakdown of this poll")
		default:
			h.deps.Logger.Error("analytics guard error", zap.Error(err))
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Analytics unavailable")
		}
		return
	}

	result, err := h.deps.Engine.Aggregate(r.Context(), poll, dims)
	if err != nil {
		switch {
		case errors.Is(err, analytics.ErrBadDimension):
			middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, analytics.ErrAudienceBelowK):
			h.deps.Recorder.Rejection(r.Context(), audit.EventAnalyticsRead, models.ReasonAudienceBelowK, pollID, requester)
			middleware.ErrorWithCode(w, http.StatusForbidden, models.ReasonAudienceBelowK,
				"Audience is below the poll's anonymity threshold")
		case errors.Is(err, analytics.ErrSpanTooNarrow):
			middleware.ErrorResponse(w, http.StatusUnprocessableEntity,
				"Poll has not been open long enough for time-bucketed breakdowns")
		default:
			h.deps.Logger.Error("failed to aggregate results", zap.Error(err))
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Analytics unavailable")
		}
		return
	}

	for _, b := range result.Buckets {
		if b.Suppressed {
			metrics.SuppressedBuckets.Inc()
		}
	}

	middleware.JSONResponse(w, http.StatusOK, result)
}
