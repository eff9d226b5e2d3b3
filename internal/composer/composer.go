// Package composer assembles turn evaluations. It wraps a raw
// activation result into the persisted TurnEvaluation record: status,
// formatted prompt block, per-codex rollups, and timing metadata.
package composer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/loreweave/loreweave/internal/activation"
	"github.com/loreweave/loreweave/internal/domain"
)

// EngineVersion tags persisted evaluations with the producing engine.
const EngineVersion = "loreweave-1.0"

// Processor turns activation results into evaluation records.
type Processor struct {
	codexEngine *activation.CodexEngine
}

// NewProcessor creates a composer. The codex engine may be nil when no
// codices are configured.
func NewProcessor(codexEngine *activation.CodexEngine) *Processor {
	return &Processor{codexEngine: codexEngine}
}

// Input contains everything needed to assemble one evaluation.
type Input struct {
	CampaignID string
	SessionID  string
	TraceID    string
	TurnCtx    *domain.TurnContext
	Result     *domain.ActivationResult
	RulesCount int

	StartTime    time.Time
	ContextMs    int64
	ActivationMs int64
}

// Process assembles the final evaluation record for a turn.
func (p *Processor) Process(ctx context.Context, input *Input) *domain.TurnEvaluation {
	start := time.Now()

	eval := &domain.TurnEvaluation{
		ID:         uuid.New().String(),
		CampaignID: input.CampaignID,
		SessionID:  input.SessionID,
		Timestamp:  time.Now().UTC(),
		Status:     domain.StatusNone,
	}

	if input.TurnCtx != nil {
		eval.TurnNumber = input.TurnCtx.TurnNumber
	}

	if input.Result != nil {
		eval.Activated = input.Result.Activated
		eval.Skipped = input.Result.Skipped
		eval.TotalTokens = input.Result.TotalTokens
		eval.BudgetExceeded = input.Result.BudgetExceeded

		if len(input.Result.Activated) > 0 {
			eval.Status = domain.StatusLore
			eval.PromptBlock = activation.FormatPromptBlock(input.Result)
		}

		if p.codexEngine != nil && p.codexEngine.CodexCount() > 0 {
			budget := domain.DefaultTokenBudget
			if input.TurnCtx != nil {
				budget = input.TurnCtx.Budget()
			}
			eval.CodexResults = p.codexEngine.Rollup(input.Result, budget)
		}
	}

	composeMs := time.Since(start).Milliseconds()
	totalMs := int64(0)
	if !input.StartTime.IsZero() {
		totalMs = time.Since(input.StartTime).Milliseconds()
	}

	eval.Metadata = domain.EvaluationMetadata{
		TraceID:        input.TraceID,
		ContextMs:      input.ContextMs,
		ActivationMs:   input.ActivationMs,
		ComposeMs:      composeMs,
		TotalMs:        totalMs,
		RulesEvaluated: input.RulesCount,
		EngineVersion:  EngineVersion,
	}

	return eval
}

// HasLore reports whether an evaluation injected any lore; used to
// decide whether to publish on the lore-activated topic.
func HasLore(eval *domain.TurnEvaluation) bool {
	return eval != nil && eval.Status == domain.StatusLore
}
