package composer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/loreweave/loreweave/internal/activation"
	"github.com/loreweave/loreweave/internal/domain"
)

func TestProcessor(t *testing.T) {
	proc := NewProcessor(nil)
	ctx := context.Background()

	t.Run("LoreStatus", func(t *testing.T) {
		input := &Input{
			CampaignID: "campaign-001",
			SessionID:  "session-001",
			TraceID:    "trace-001",
			StartTime:  time.Now(),
			TurnCtx:    &domain.TurnContext{TurnNumber: 4},
			RulesCount: 3,
			Result: &domain.ActivationResult{
				Activated: []domain.ActivatedRule{
					{RuleID: "rule-1", Reason: "matched keywords", TokenCost: 50, Priority: 10, Content: "The dragon stirs."},
				},
				TotalTokens: 50,
			},
		}

		eval := proc.Process(ctx, input)

		if eval.Status != domain.StatusLore {
			t.Errorf("expected LORE, got %s", eval.Status)
		}
		if eval.CampaignID != "campaign-001" {
			t.Errorf("expected campaignID 'campaign-001', got '%s'", eval.CampaignID)
		}
		if eval.TurnNumber != 4 {
			t.Errorf("expected turn number 4, got %d", eval.TurnNumber)
		}
		if eval.TotalTokens != 50 {
			t.Errorf("expected total tokens 50, got %d", eval.TotalTokens)
		}
		if eval.PromptBlock == "" {
			t.Error("expected a prompt block when lore activated")
		}
		if !strings.Contains(eval.PromptBlock, "The dragon stirs.") {
			t.Errorf("prompt block missing rule content: %q", eval.PromptBlock)
		}
		if eval.Metadata.TraceID != "trace-001" {
			t.Errorf("expected traceID 'trace-001', got '%s'", eval.Metadata.TraceID)
		}
	})

	t.Run("NoneStatus", func(t *testing.T) {
		input := &Input{
			CampaignID: "campaign-001",
			TraceID:    "trace-002",
			StartTime:  time.Now(),
			TurnCtx:    &domain.TurnContext{TurnNumber: 1},
			Result: &domain.ActivationResult{
				Skipped: []domain.SkippedRule{
					{RuleID: "rule-1", Reason: "no keywords matched"},
				},
			},
		}

		eval := proc.Process(ctx, input)

		if eval.Status != domain.StatusNone {
			t.Errorf("expected NONE, got %s", eval.Status)
		}
		if eval.PromptBlock != "" {
			t.Errorf("expected empty prompt block, got %q", eval.PromptBlock)
		}
		if len(eval.Skipped) != 1 {
			t.Errorf("expected 1 skipped rule, got %d", len(eval.Skipped))
		}
	})

	t.Run("NilResult", func(t *testing.T) {
		input := &Input{
			CampaignID: "campaign-001",
			TraceID:    "trace-003",
			StartTime:  time.Now(),
		}

		eval := proc.Process(ctx, input)

		if eval.Status != domain.StatusNone {
			t.Errorf("expected NONE for nil result, got %s", eval.Status)
		}
		if eval.TotalTokens != 0 {
			t.Errorf("expected 0 tokens, got %d", eval.TotalTokens)
		}
	})

	t.Run("MetadataPopulated", func(t *testing.T) {
		input := &Input{
			CampaignID:   "campaign-001",
			TraceID:      "trace-004",
			StartTime:    time.Now(),
			TurnCtx:      &domain.TurnContext{TurnNumber: 2},
			RulesCount:   7,
			ContextMs:    3,
			ActivationMs: 5,
			Result:       &domain.ActivationResult{},
		}

		eval := proc.Process(ctx, input)

		if eval.Metadata.TraceID != "trace-004" {
			t.Error("missing traceID in metadata")
		}
		if eval.Metadata.RulesEvaluated != 7 {
			t.Errorf("expected 7 rules evaluated, got %d", eval.Metadata.RulesEvaluated)
		}
		if eval.Metadata.ContextMs != 3 || eval.Metadata.ActivationMs != 5 {
			t.Errorf("timing fields not carried through: %+v", eval.Metadata)
		}
		if eval.Metadata.EngineVersion == "" {
			t.Error("missing engine version")
		}
		if eval.Metadata.TotalMs < 0 {
			t.Error("TotalMs should be non-negative")
		}
	})

	t.Run("BudgetExceededCarried", func(t *testing.T) {
		input := &Input{
			CampaignID: "campaign-001",
			TraceID:    "trace-005",
			StartTime:  time.Now(),
			TurnCtx:    &domain.TurnContext{TurnNumber: 1, TokenBudget: 100},
			Result: &domain.ActivationResult{
				Activated: []domain.ActivatedRule{
					{RuleID: "rule-1", Reason: "matched keywords", TokenCost: 150, Content: "lore"},
				},
				TotalTokens:    150,
				BudgetExceeded: true,
			},
		}

		eval := proc.Process(ctx, input)

		if !eval.BudgetExceeded {
			t.Error("expected BudgetExceeded to be carried into the evaluation")
		}
	})

	t.Run("UniqueEvaluationIDs", func(t *testing.T) {
		input := &Input{CampaignID: "campaign-001", StartTime: time.Now()}

		eval1 := proc.Process(ctx, input)
		eval2 := proc.Process(ctx, input)

		if eval1.ID == "" || eval1.ID == eval2.ID {
			t.Errorf("expected distinct evaluation IDs, got %q and %q", eval1.ID, eval2.ID)
		}
	})
}

func TestProcessorCodexRollup(t *testing.T) {
	codexEngine := activation.NewCodexEngine()
	codexEngine.LoadCodices([]*domain.Codex{
		{ID: "geo", Name: "Geography", TokenShare: 0.5, Enabled: true},
	})

	proc := NewProcessor(codexEngine)
	ctx := context.Background()

	input := &Input{
		CampaignID: "campaign-001",
		TraceID:    "trace-001",
		StartTime:  time.Now(),
		TurnCtx:    &domain.TurnContext{TurnNumber: 1, TokenBudget: 1000},
		Result: &domain.ActivationResult{
			Activated: []domain.ActivatedRule{
				{RuleID: "rule-1", CodexID: "geo", Reason: "matched keywords", TokenCost: 600, Content: "lore"},
			},
			TotalTokens: 600,
		},
	}

	eval := proc.Process(ctx, input)

	if len(eval.CodexResults) != 1 {
		t.Fatalf("expected 1 codex result, got %d", len(eval.CodexResults))
	}

	result := eval.CodexResults[0]
	if result.CodexID != "geo" {
		t.Errorf("expected codex 'geo', got '%s'", result.CodexID)
	}
	if result.TokensUsed != 600 {
		t.Errorf("expected 600 tokens used, got %d", result.TokensUsed)
	}
	// 600 tokens against a 500-token share (0.5 of 1000)
	if !result.Saturated {
		t.Error("expected codex to be saturated")
	}
}

func TestHasLore(t *testing.T) {
	loreEval := &domain.TurnEvaluation{Status: domain.StatusLore}
	noneEval := &domain.TurnEvaluation{Status: domain.StatusNone}

	if !HasLore(loreEval) {
		t.Error("expected true for LORE")
	}
	if HasLore(noneEval) {
		t.Error("expected false for NONE")
	}
	if HasLore(nil) {
		t.Error("expected false for nil evaluation")
	}
}
