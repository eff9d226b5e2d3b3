package worker

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loreweave/loreweave/internal/activation"
	"github.com/loreweave/loreweave/internal/bus"
	"github.com/loreweave/loreweave/internal/composer"
	"github.com/loreweave/loreweave/internal/domain"
)

func newTestEngine(t *testing.T) *activation.Engine {
	t.Helper()

	engine, err := activation.NewEngine(nil)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	testRules := []*domain.Rule{
		{
			ID:              "dragon-lore",
			PrimaryKeywords: []string{"dragon"},
			Logic:           domain.MatchAnyOf,
			Priority:        10,
			Content:         "An ancient dragon sleeps beneath the northern peaks.",
			Enabled:         true,
		},
		{
			ID:              "tavern-lore",
			PrimaryKeywords: []string{"tavern"},
			Logic:           domain.MatchAnyOf,
			Priority:        5,
			Content:         "The Rusty Anchor serves watered ale.",
			Enabled:         true,
		},
	}
	if err := engine.LoadRules(testRules); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}
	return engine
}

func TestWorker(t *testing.T) {
	// Create channel bus
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	engine := newTestEngine(t)
	processor := composer.NewProcessor(nil)
	defaults := domain.EngineConfig{
		TokenBudget: domain.DefaultTokenBudget,
		ScanDepth:   domain.DefaultScanDepth,
	}

	worker := NewWorker(eventBus, nil, engine, processor, nil, defaults)

	t.Run("StartAndStop", func(t *testing.T) {
		cfg := Config{
			CampaignIDs: []string{"campaign-001"},
		}

		err := worker.Start(cfg)
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := worker.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}

		err = worker.Stop()
		if err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = worker.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("ProcessTurn", func(t *testing.T) {
		// Create fresh worker for this test
		w := NewWorker(eventBus, nil, engine, processor, nil, defaults)

		cfg := Config{
			CampaignIDs: []string{"campaign-test"},
		}
		w.Start(cfg)
		defer w.Stop()

		// Track evaluation results
		var evaluatedReceived atomic.Bool
		var evaluatedPayload []byte

		eventBus.Subscribe(context.Background(), "campaign-test", domain.TopicTurnEvaluated, func(ctx context.Context, msg *domain.Message) error {
			evaluatedPayload = msg.Payload
			evaluatedReceived.Store(true)
			return nil
		})

		// Allow subscriptions to be active
		time.Sleep(50 * time.Millisecond)

		// Publish a turn
		turnMsg := TurnMessage{
			CampaignID:  "campaign-test",
			TraceID:     "trace-001",
			PlayerInput: "I look around the empty room",
			TurnNumber:  1,
		}

		payload, _ := json.Marshal(turnMsg)
		err := eventBus.Publish(context.Background(), "campaign-test", domain.TopicTurnSubmitted, payload)
		if err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		// Wait for processing
		time.Sleep(100 * time.Millisecond)

		if !evaluatedReceived.Load() {
			t.Error("expected evaluation to be published")
		}

		if evaluatedPayload != nil {
			var eval domain.TurnEvaluation
			if err := json.Unmarshal(evaluatedPayload, &eval); err != nil {
				t.Fatalf("failed to parse evaluation: %v", err)
			}

			if eval.CampaignID != "campaign-test" {
				t.Errorf("expected campaignID 'campaign-test', got '%s'", eval.CampaignID)
			}
			if eval.Status != domain.StatusNone {
				t.Errorf("expected status NONE for plain input, got '%s'", eval.Status)
			}
			if eval.Metadata.TraceID != "trace-001" {
				t.Errorf("expected traceID 'trace-001', got '%s'", eval.Metadata.TraceID)
			}
		}
	})

	t.Run("LorePublished", func(t *testing.T) {
		w := NewWorker(eventBus, nil, engine, processor, nil, defaults)

		cfg := Config{
			CampaignIDs: []string{"campaign-lore"},
		}
		w.Start(cfg)
		defer w.Stop()

		// Track lore activations
		var loreReceived atomic.Bool

		eventBus.Subscribe(context.Background(), "campaign-lore", domain.TopicLoreActivated, func(ctx context.Context, msg *domain.Message) error {
			loreReceived.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		// Publish a turn that matches the dragon rule
		turnMsg := TurnMessage{
			CampaignID:  "campaign-lore",
			PlayerInput: "I ask the innkeeper about the dragon",
			TurnNumber:  1,
		}

		payload, _ := json.Marshal(turnMsg)
		eventBus.Publish(context.Background(), "campaign-lore", domain.TopicTurnSubmitted, payload)

		time.Sleep(100 * time.Millisecond)

		if !loreReceived.Load() {
			t.Error("expected lore activation to be published for matching turn")
		}
	})

	t.Run("MultiCampaign", func(t *testing.T) {
		w := NewWorker(eventBus, nil, engine, processor, nil, defaults)

		cfg := Config{
			CampaignIDs: []string{"campaign-a", "campaign-b"},
		}
		w.Start(cfg)
		defer w.Stop()

		stats := w.GetStats()
		if stats.SubscriptionCount != 2 {
			t.Errorf("expected 2 subscriptions for 2 campaigns, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("GlobalWorker", func(t *testing.T) {
		w := NewWorker(eventBus, nil, engine, processor, nil, defaults)

		if err := w.Start(Config{}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer w.Stop()

		stats := w.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 global subscription, got %d", stats.SubscriptionCount)
		}
		if len(stats.Topics) != 1 || stats.Topics[0] != domain.TopicTurnSubmitted {
			t.Errorf("expected subscription on %s, got %v", domain.TopicTurnSubmitted, stats.Topics)
		}
	})
}

func TestTurnMessageParsing(t *testing.T) {
	msg := TurnMessage{
		CampaignID:  "campaign-001",
		SessionID:   "session-123",
		TraceID:     "trace-456",
		PlayerInput: "I open the door",
		AIResponse:  "The door creaks open",
		History: []domain.HistoryEntry{
			{Role: domain.RolePlayer, Parts: []string{"hello"}},
		},
		Memories: []domain.Memory{
			{Text: "You swore an oath", Pinned: true, Importance: 90},
		},
		TurnNumber:  4,
		TokenBudget: 2048,
		ScanDepth:   3,
	}

	// Marshal and unmarshal
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var parsed TurnMessage
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if parsed.SessionID != msg.SessionID {
		t.Errorf("expected SessionID '%s', got '%s'", msg.SessionID, parsed.SessionID)
	}
	if parsed.TurnNumber != msg.TurnNumber {
		t.Errorf("expected TurnNumber %d, got %d", msg.TurnNumber, parsed.TurnNumber)
	}
	if parsed.TokenBudget != msg.TokenBudget {
		t.Errorf("expected TokenBudget %d, got %d", msg.TokenBudget, parsed.TokenBudget)
	}
	if len(parsed.History) != 1 || len(parsed.Memories) != 1 {
		t.Errorf("expected history and memories to round-trip, got %+v", parsed)
	}
}
