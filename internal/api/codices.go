package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/loreweave/loreweave/internal/domain"
)

// ListCodices returns all codices currently loaded in the engine.
func (h *Handler) ListCodices(w http.ResponseWriter, r *http.Request) {
	if h.codexEngine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "codex engine not available",
		})
		return
	}

	codices := h.codexEngine.GetLoadedCodices()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"codices": codices,
		"count":   len(codices),
	})
}

// GetCodex retrieves a codex by ID.
func (h *Handler) GetCodex(w http.ResponseWriter, r *http.Request) {
	codexID := chi.URLParam(r, "id")

	if codexID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "codex id is required",
		})
		return
	}

	if h.codexEngine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "codex engine not available",
		})
		return
	}

	for _, cx := range h.codexEngine.GetLoadedCodices() {
		if cx.ID == codexID {
			writeJSON(w, http.StatusOK, cx)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "codex not found",
	})
}

// CreateCodexRequest is the request body for creating or updating a codex.
type CreateCodexRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	TokenShare  float64 `json:"tokenShare,omitempty"`
	Enabled     bool    `json:"enabled"`
}

// CreateCodex creates a new codex and saves it to the database.
func (h *Handler) CreateCodex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateCodexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id and name are required",
		})
		return
	}

	if req.TokenShare < 0 || req.TokenShare > 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "tokenShare must be between 0 and 1",
		})
		return
	}

	codex := &domain.Codex{
		ID:          req.ID,
		CampaignID:  GlobalCampaignID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		TokenShare:  req.TokenShare,
		Enabled:     req.Enabled,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	if h.repo != nil {
		if err := h.repo.SaveCodex(ctx, GlobalCampaignID, codex); err != nil {
			slog.Error("failed to save codex", "id", codex.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save codex",
			})
			return
		}
	}

	slog.Info("codex created", "id", codex.ID, "name", codex.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"codex":   codex,
		"message": "Codex created. Call POST /codices/reload to apply changes.",
	})
}

// UpdateCodex updates an existing codex.
func (h *Handler) UpdateCodex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	codexID := chi.URLParam(r, "id")

	if codexID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "codex id is required",
		})
		return
	}

	var req CreateCodexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.TokenShare < 0 || req.TokenShare > 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "tokenShare must be between 0 and 1",
		})
		return
	}

	codex := &domain.Codex{
		ID:          codexID,
		CampaignID:  GlobalCampaignID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		TokenShare:  req.TokenShare,
		Enabled:     req.Enabled,
		UpdatedAt:   time.Now().UTC(),
	}

	if h.repo != nil {
		if err := h.repo.SaveCodex(ctx, GlobalCampaignID, codex); err != nil {
			slog.Error("failed to update codex", "id", codexID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to update codex",
			})
			return
		}
	}

	slog.Info("codex updated", "id", codexID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"codex":   codex,
		"message": "Codex updated. Call POST /codices/reload to apply changes.",
	})
}

// DeleteCodex disables a codex and auto-reloads the engine.
func (h *Handler) DeleteCodex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	codexID := chi.URLParam(r, "id")

	if codexID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "codex id is required",
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.DeleteCodex(ctx, GlobalCampaignID, codexID); err != nil {
			slog.Error("failed to delete codex", "id", codexID, "error", err)
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "codex not found",
			})
			return
		}

		if h.codexEngine != nil {
			dbCodices, err := h.repo.ListCodices(ctx, GlobalCampaignID)
			if err != nil {
				slog.Error("failed to reload codices after delete", "error", err)
			} else {
				h.codexEngine.ReloadCodices(dbCodices)
			}
		}
	}

	slog.Info("codex deleted", "id", codexID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Codex deleted and engine reloaded.",
	})
}

// ReloadCodices reloads all codices from the database into the engine.
func (h *Handler) ReloadCodices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if h.codexEngine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "codex engine not available",
		})
		return
	}

	dbCodices, err := h.repo.ListCodices(ctx, GlobalCampaignID)
	if err != nil {
		slog.Error("failed to list codices from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load codices from database",
		})
		return
	}

	h.codexEngine.ReloadCodices(dbCodices)

	slog.Info("codices reloaded from database", "count", len(dbCodices))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "codices reloaded successfully",
		"count":   len(dbCodices),
	})
}
