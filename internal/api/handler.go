package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/loreweave/loreweave/internal/activation"
	"github.com/loreweave/loreweave/internal/composer"
	"github.com/loreweave/loreweave/internal/domain"
	"github.com/loreweave/loreweave/internal/repository"
	"github.com/loreweave/loreweave/internal/session"
)

// GlobalCampaignID is used for rules and codices shared by all campaigns.
const GlobalCampaignID = "*"

// Handler holds dependencies for API handlers.
type Handler struct {
	repo        domain.Repository
	cache       domain.Cache
	bus         domain.EventBus
	engine      *activation.Engine
	codexEngine *activation.CodexEngine
	processor   *composer.Processor
	sessions    *session.Service
	defaults    domain.EngineConfig
	version     string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *activation.Engine, codexEngine *activation.CodexEngine, processor *composer.Processor, sessions *session.Service, defaults domain.EngineConfig, version string) *Handler {
	return &Handler{
		repo:        repo,
		cache:       cache,
		bus:         bus,
		engine:      engine,
		codexEngine: codexEngine,
		processor:   processor,
		sessions:    sessions,
		defaults:    defaults,
		version:     version,
	}
}

// EvaluateRequest is the request body for POST /evaluate. A turn is
// either session-backed (sessionId set; history and memories come from
// the stored session) or inline (history and memories in the body).
type EvaluateRequest struct {
	SessionID string `json:"sessionId,omitempty"`

	PlayerInput string                `json:"playerInput"`
	AIResponse  string                `json:"aiResponse,omitempty"`
	History     []domain.HistoryEntry `json:"history,omitempty"`
	Memories    []domain.Memory       `json:"memories,omitempty"`
	TurnNumber  int                   `json:"turnNumber,omitempty"`

	TokenBudget   int  `json:"tokenBudget,omitempty"`
	ScanDepth     int  `json:"scanDepth,omitempty"`
	CaseSensitive bool `json:"caseSensitive,omitempty"`
	WholeWord     bool `json:"wholeWord,omitempty"`
}

// Evaluate handles POST /evaluate requests.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	campaignID := GetCampaignID(ctx)
	traceID := GetTraceID(ctx)

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.PlayerInput == "" && req.AIResponse == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "playerInput or aiResponse is required",
		})
		return
	}

	// Build the turn context: session-backed or inline.
	var tc *domain.TurnContext
	if req.SessionID != "" {
		if h.sessions == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "session service not available",
			})
			return
		}
		built, err := h.sessions.BuildContext(ctx, campaignID, req.SessionID, req.PlayerInput, req.AIResponse, h.defaults)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{
					"error": "session not found",
				})
				return
			}
			slog.Error("failed to build session context", "session_id", req.SessionID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to build session context",
			})
			return
		}
		tc = built
	} else {
		tc = &domain.TurnContext{
			CampaignID:  campaignID,
			PlayerInput: req.PlayerInput,
			AIResponse:  req.AIResponse,
			History:     req.History,
			Memories:    req.Memories,
			TurnNumber:  req.TurnNumber,
		}
	}

	// Per-request overrides win over configured defaults.
	tc.TokenBudget = firstPositive(req.TokenBudget, h.defaults.TokenBudget)
	tc.ScanDepth = firstPositive(req.ScanDepth, h.defaults.ScanDepth)
	tc.CaseSensitive = req.CaseSensitive || h.defaults.CaseSensitive
	tc.WholeWord = req.WholeWord || h.defaults.WholeWord

	contextMs := time.Since(start).Milliseconds()

	activationStart := time.Now()
	result, err := h.engine.EvaluateTurn(ctx, tc)
	if err != nil {
		slog.Error("turn evaluation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "turn evaluation failed",
		})
		return
	}
	activationMs := time.Since(activationStart).Milliseconds()

	eval := h.processor.Process(ctx, &composer.Input{
		CampaignID:   campaignID,
		SessionID:    req.SessionID,
		TraceID:      traceID,
		TurnCtx:      tc,
		Result:       result,
		RulesCount:   h.engine.RulesCount(),
		StartTime:    start,
		ContextMs:    contextMs,
		ActivationMs: activationMs,
	})

	if h.repo != nil {
		if err := h.repo.SaveEvaluation(ctx, campaignID, eval); err != nil {
			slog.Error("failed to save evaluation", "id", eval.ID, "error", err)
		}
	}

	h.publishEvaluated(ctx, campaignID, eval)

	writeJSON(w, http.StatusOK, eval.ToResponse())
}

// publishEvaluated emits the turn-evaluated event, plus a lore-activated
// event when anything fired. Best effort; evaluation already succeeded.
func (h *Handler) publishEvaluated(ctx context.Context, campaignID string, eval *domain.TurnEvaluation) {
	if h.bus == nil {
		return
	}

	payload, err := json.Marshal(eval)
	if err != nil {
		slog.Error("failed to marshal evaluation event", "id", eval.ID, "error", err)
		return
	}

	if err := h.bus.Publish(ctx, campaignID, domain.TopicTurnEvaluated, payload); err != nil {
		slog.Error("failed to publish turn evaluated event", "id", eval.ID, "error", err)
	}
	if composer.HasLore(eval) {
		if err := h.bus.Publish(ctx, campaignID, domain.TopicLoreActivated, payload); err != nil {
			slog.Error("failed to publish lore activated event", "id", eval.ID, "error", err)
		}
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetEvaluation retrieves an evaluation by ID.
func (h *Handler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID := GetCampaignID(ctx)
	evalID := chi.URLParam(r, "id")

	if evalID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "evaluation id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	eval, err := h.repo.GetEvaluation(ctx, campaignID, evalID)
	if err != nil {
		slog.Error("failed to get evaluation", "id", evalID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "evaluation not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, eval)
}

// ListRules returns all rules currently loaded in the engine.
// Rules are loaded at startup and can be reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": loadedRules,
		"count": len(loadedRules),
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.engine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRule validates a rule, loads it into the engine, and persists it.
// Rules are saved globally (campaign_id = "*") so they apply to every
// campaign unless authored otherwise.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var rule domain.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if rule.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id is required",
		})
		return
	}
	if rule.Content == "" && !rule.AlwaysActive {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "content is required",
		})
		return
	}
	if rule.Logic != "" && !rule.Logic.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "unknown logic mode: " + string(rule.Logic),
		})
		return
	}

	rule.CampaignID = GlobalCampaignID
	rule.Enabled = true

	// LoadRule also compiles the CEL condition, so a bad expression is
	// rejected here rather than at evaluation time.
	if err := h.engine.LoadRule(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid rule: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveRule(ctx, GlobalCampaignID, &rule); err != nil {
			slog.Error("failed to save rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("rule created", "id", rule.ID, "title", rule.Title)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule": rule,
	})
}

// ReloadRules reloads all rules from the database into the engine.
// Activation history is preserved across reloads.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListRules(ctx, GlobalCampaignID)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

// HistoryStats returns activation history statistics.
func (h *Handler) HistoryStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.HistoryStats())
}

// ClearHistory wipes the engine's activation history. Hosts call this
// when the player starts a new game.
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	h.engine.ClearHistory()
	slog.Info("activation history cleared", "campaign_id", GetCampaignID(r.Context()))
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "activation history cleared",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
