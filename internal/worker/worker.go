// Package worker provides async turn processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/loreweave/loreweave/internal/activation"
	"github.com/loreweave/loreweave/internal/composer"
	"github.com/loreweave/loreweave/internal/domain"
	"github.com/loreweave/loreweave/internal/session"
)

// Worker processes submitted turns asynchronously from the EventBus.
type Worker struct {
	bus       domain.EventBus
	repo      domain.Repository
	engine    *activation.Engine
	processor *composer.Processor
	sessions  *session.Service
	defaults  domain.EngineConfig

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// CampaignIDs is the list of campaigns to process (empty = all via
	// wildcard if supported)
	CampaignIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, engine *activation.Engine, processor *composer.Processor, sessions *session.Service, defaults domain.EngineConfig) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		repo:      repo,
		engine:    engine,
		processor: processor,
		sessions:  sessions,
		defaults:  defaults,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins processing turns for the given campaigns.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.CampaignIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, campaignID := range cfg.CampaignIDs {
		if err := w.startCampaignWorker(campaignID); err != nil {
			slog.Error("failed to start worker for campaign",
				"campaign_id", campaignID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"campaign_count", len(cfg.CampaignIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all campaigns
// (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicTurnSubmitted, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startCampaignWorker starts a worker for a specific campaign.
func (w *Worker) startCampaignWorker(campaignID string) error {
	sub, err := w.bus.Subscribe(w.ctx, campaignID, domain.TopicTurnSubmitted, func(ctx context.Context, msg *domain.Message) error {
		return w.processTurn(ctx, campaignID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("campaign worker started",
		"campaign_id", campaignID,
		"topic", domain.TopicTurnSubmitted,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processTurn(ctx, msg.CampaignID, msg)
}

// TurnMessage is the message payload for turn processing. A turn is
// either session-backed (SessionID set) or carries its context inline.
type TurnMessage struct {
	CampaignID string `json:"campaignId,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
	TraceID    string `json:"traceId,omitempty"`

	PlayerInput string                `json:"playerInput"`
	AIResponse  string                `json:"aiResponse,omitempty"`
	History     []domain.HistoryEntry `json:"history,omitempty"`
	Memories    []domain.Memory       `json:"memories,omitempty"`
	TurnNumber  int                   `json:"turnNumber,omitempty"`

	TokenBudget int `json:"tokenBudget,omitempty"`
	ScanDepth   int `json:"scanDepth,omitempty"`
}

// processTurn evaluates a submitted turn through the pipeline.
func (w *Worker) processTurn(ctx context.Context, campaignID string, msg *domain.Message) error {
	start := time.Now()

	var turn TurnMessage
	if err := json.Unmarshal(msg.Payload, &turn); err != nil {
		slog.Error("failed to parse turn message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message campaign if provided
	if turn.CampaignID != "" {
		campaignID = turn.CampaignID
	}

	traceID := turn.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing turn",
		"campaign_id", campaignID,
		"session_id", turn.SessionID,
		"trace_id", traceID,
	)

	// 1. Build the turn context
	var tc *domain.TurnContext
	if turn.SessionID != "" && w.sessions != nil {
		built, err := w.sessions.BuildContext(ctx, campaignID, turn.SessionID, turn.PlayerInput, turn.AIResponse, w.defaults)
		if err != nil {
			slog.Error("failed to build session context",
				"session_id", turn.SessionID,
				"error", err,
			)
			return err
		}
		tc = built
	} else {
		tc = &domain.TurnContext{
			CampaignID:  campaignID,
			PlayerInput: turn.PlayerInput,
			AIResponse:  turn.AIResponse,
			History:     turn.History,
			Memories:    turn.Memories,
			TurnNumber:  turn.TurnNumber,
		}
		tc.TokenBudget = w.defaults.TokenBudget
		tc.ScanDepth = w.defaults.ScanDepth
		tc.CaseSensitive = w.defaults.CaseSensitive
		tc.WholeWord = w.defaults.WholeWord
	}
	if turn.TokenBudget > 0 {
		tc.TokenBudget = turn.TokenBudget
	}
	if turn.ScanDepth > 0 {
		tc.ScanDepth = turn.ScanDepth
	}

	contextMs := time.Since(start).Milliseconds()

	// 2. Evaluate activations
	activationStart := time.Now()
	result, err := w.engine.EvaluateTurn(ctx, tc)
	if err != nil {
		slog.Error("turn evaluation failed",
			"session_id", turn.SessionID,
			"error", err,
		)
		return err
	}
	activationMs := time.Since(activationStart).Milliseconds()

	// 3. Compose the evaluation record
	eval := w.processor.Process(ctx, &composer.Input{
		CampaignID:   campaignID,
		SessionID:    turn.SessionID,
		TraceID:      traceID,
		TurnCtx:      tc,
		Result:       result,
		RulesCount:   w.engine.RulesCount(),
		StartTime:    start,
		ContextMs:    contextMs,
		ActivationMs: activationMs,
	})

	// 4. Save evaluation
	if w.repo != nil {
		if err := w.repo.SaveEvaluation(ctx, campaignID, eval); err != nil {
			slog.Error("failed to save evaluation",
				"id", eval.ID,
				"error", err,
			)
		}
	}

	// 5. Publish result to evaluated topic
	resultPayload, _ := json.Marshal(eval)
	if err := w.bus.Publish(ctx, campaignID, domain.TopicTurnEvaluated, resultPayload); err != nil {
		slog.Error("failed to publish evaluation",
			"id", eval.ID,
			"error", err,
		)
	}

	// 6. If lore activated, publish to the lore topic
	if composer.HasLore(eval) {
		if err := w.bus.Publish(ctx, campaignID, domain.TopicLoreActivated, resultPayload); err != nil {
			slog.Error("failed to publish lore activation",
				"id", eval.ID,
				"error", err,
			)
		}
	}

	slog.Info("turn processed",
		"campaign_id", campaignID,
		"session_id", turn.SessionID,
		"status", eval.Status,
		"activated", len(eval.Activated),
		"tokens", eval.TotalTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
