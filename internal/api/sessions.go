package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/loreweave/loreweave/internal/domain"
	"github.com/loreweave/loreweave/internal/repository"
)

// CreateSessionRequest is the request body for POST /sessions.
type CreateSessionRequest struct {
	Name string `json:"name,omitempty"`
}

// CreateSession starts a new playthrough session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID := GetCampaignID(ctx)

	if h.sessions == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "session service not available",
		})
		return
	}

	var req CreateSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid JSON request body",
			})
			return
		}
	}

	sess, err := h.sessions.CreateSession(ctx, campaignID, req.Name)
	if err != nil {
		slog.Error("failed to create session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to create session",
		})
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

// GetSession retrieves a session by ID.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID := GetCampaignID(ctx)
	sessionID := chi.URLParam(r, "id")

	if h.sessions == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "session service not available",
		})
		return
	}

	sess, err := h.sessions.GetSession(ctx, campaignID, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "session not found",
			})
			return
		}
		slog.Error("failed to get session", "session_id", sessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get session",
		})
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// AppendTurnRequest is the request body for POST /sessions/{id}/turns.
type AppendTurnRequest struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// AppendTurn records a role-tagged turn entry on a session. Player
// entries advance the session's turn number.
func (h *Handler) AppendTurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID := GetCampaignID(ctx)
	sessionID := chi.URLParam(r, "id")

	if h.sessions == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "session service not available",
		})
		return
	}

	var req AppendTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Role != domain.RolePlayer && req.Role != domain.RoleAI {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "role must be \"player\" or \"ai\"",
		})
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "text is required",
		})
		return
	}

	sess, err := h.sessions.AppendTurn(ctx, campaignID, sessionID, req.Role, req.Text)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "session not found",
			})
			return
		}
		slog.Error("failed to append turn", "session_id", sessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to append turn",
		})
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// AddMemoryRequest is the request body for POST /sessions/{id}/memories.
type AddMemoryRequest struct {
	Text       string  `json:"text"`
	Pinned     bool    `json:"pinned,omitempty"`
	Importance float64 `json:"importance,omitempty"`
}

// AddMemory appends a memory entry to a session.
func (h *Handler) AddMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID := GetCampaignID(ctx)
	sessionID := chi.URLParam(r, "id")

	if h.sessions == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "session service not available",
		})
		return
	}

	var req AddMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "text is required",
		})
		return
	}

	memory := &domain.Memory{
		Text:       req.Text,
		Pinned:     req.Pinned,
		Importance: req.Importance,
	}

	if err := h.sessions.AddMemory(ctx, campaignID, sessionID, memory); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "session not found",
			})
			return
		}
		slog.Error("failed to add memory", "session_id", sessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to add memory",
		})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "memory added",
	})
}
