// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/veilvote/veilvote/auth"
	"github.com/veilvote/veilvote/middleware"
	"github.com/veilvote/veilvote/models"
)

type PollHandler struct {
	deps Deps
}

func NewPollHandler(deps Deps) *PollHandler {
	return &PollHandler{deps: deps}
}

// CreatePoll handles POST /polls
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Validate input
	if req.Title == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "title is required")
		return
	}
	if len(req.Options) < 2 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "at least two options are required")
		return
	}
	minK := req.MinK
	if minK <= 0 {
		minK = h.deps.Cfg.DefaultK
	}

	pollID, err := auth.GenerateID(16)
	if err != nil {
		h.deps.Logger.Error("failed to generate poll ID", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}
	adminKey := auth.GenerateAdminKey(pollID, h.deps.Cfg.AdminKeySalt)

	tx, err := h.deps.DB.Begin()
	if err != nil {
		h.deps.Logger.Error("failed to begin transaction", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO poll (id, title, description, status, min_k, audience_size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, pollID, req.Title, req.Description, models.StatusDraft, minK, req.AudienceSize, time.Now())
	if err != nil {
		h.deps.Logger.Error("failed to insert poll", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}

	options := make([]models.Option, 0, len(req.Options))
	for _, label := range req.Options {
		if label == "" {
			middleware.ErrorResponse(w, http.StatusBadRequest, "option labels must not be empty")
			return
		}
		optionID, err := auth.GenerateID(12)
		if err != nil {
			h.deps.Logger.Error("failed to generate option ID", zap.Error(err))
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
			return
		}
		if _, err := tx.Exec(`INSERT INTO option (id, poll_id, label) VALUES ($1, $2, $3)`,
			optionID, pollID, label); err != nil {
			h.deps.Logger.Error("failed to insert option", zap.Error(err))
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
			return
		}
		options = append(options, models.Option{ID: optionID, PollID: pollID, Label: label})
	}

	if err := tx.Commit(); err != nil {
		h.deps.Logger.Error("failed to commit poll", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}

	h.deps.Logger.Info("poll created", zap.String("poll_id", pollID), zap.Int("min_k", minK))

	middleware.JSONResponse(w, http.StatusCreated, models.CreatePollResponse{
		PollID:   pollID,
		AdminKey: adminKey,
		Options:  options,
	})
}

// GetPollAdmin handles GET /polls/{id}/admin
func (h *PollHandler) GetPollAdmin(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")

	adminKey := r.Header.Get("X-Admin-Key")
	if err := auth.ValidateAdminKey(pollID, adminKey, h.deps.Cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return
	}

	poll, err := getPoll(h.deps.DB, pollID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		h.deps.Logger.Error("failed to query poll", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	options, err := getOptions(h.deps.DB, pollID)
	if err != nil {
		h.deps.Logger.Error("failed to query options", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.PollWithOptions{Poll: poll, Options: options})
}

// GetPoll handles GET /polls/{id} (public, no counts)
func (h *PollHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
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

	options, err := getOptions(h.deps.DB, pollID)
	if err != nil {
		h.deps.Logger.Error("failed to query options", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	// The public view never exposes the audience size of a small poll.
	poll.AudienceSize = 0
	middleware.JSONResponse(w, http.StatusOK, models.PollWithOptions{Poll: poll, Options: options})
}

// PublishPoll handles POST /polls/{id}/publish
func (h *PollHandler) PublishPoll(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")

	adminKey := r.Header.Get("X-Admin-Key")
	if err := auth.ValidateAdminKey(pollID, adminKey, h.deps.Cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return
	}

	poll, err := getPoll(h.deps.DB, pollID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		h.deps.Logger.Error("failed to query poll", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if poll.Status != models.StatusDraft && poll.Status != models.StatusScheduled {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not in a publishable state")
		return
	}

	// A poll whose whole audience is under the disclosure threshold could
	// never release results; refuse to open it at all.
	if poll.AudienceSize < poll.MinK {
		middleware.ErrorWithCode(w, http.StatusUnprocessableEntity, models.ReasonAudienceBelowK,
			"Audience size is below the poll's anonymity threshold")
		return
	}

	var optionCount int
	if err := h.deps.DB.QueryRow(`SELECT COUNT(*) FROM option WHERE poll_id = $1`, pollID).Scan(&optionCount); err != nil {
		h.deps.Logger.Error("failed to count options", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if optionCount < 2 {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll needs at least two options")
		return
	}

	_, err = h.deps.DB.Exec(`UPDATE poll SET status = $1, opened_at = $2 WHERE id = $3`,
		models.StatusActive, time.Now(), pollID)
	if err != nil {
		h.deps.Logger.Error("failed to publish poll", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to publish poll")
		return
	}

	h.deps.Logger.Info("poll published", zap.String("poll_id", pollID))
	middleware.JSONResponse(w, http.StatusOK, map[string]string{"status": models.StatusActive})
}

// ClosePoll handles POST /polls/{id}/close
func (h *PollHandler) ClosePoll(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")

	adminKey := r.Header.Get("X-Admin-Key")
	if err := auth.ValidateAdminKey(pollID, adminKey, h.deps.Cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return
	}

	result, err := h.deps.DB.Exec(`UPDATE poll SET status = $1, ended_at = $2 WHERE id = $3 AND status = $4`,
		models.StatusEnded, time.Now(), pollID, models.StatusActive)
	if err != nil {
		h.deps.Logger.Error("failed to close poll", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to close poll")
		return
	}
	affected, err := result.RowsAffected()
	if err != nil {
		h.deps.Logger.Error("failed to read close result", zap.Error(err))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to close poll")
		return
	}
	if affected == 0 {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not open")
		return
	}

	h.deps.Logger.Info("poll closed", zap.String("poll_id", pollID))
	middleware.JSONResponse(w, http.StatusOK, map[string]string{"status": models.StatusEnded})
}
