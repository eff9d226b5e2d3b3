package domain

import (
	"time"
)

// ActivationResult is the engine's per-turn output.
type ActivationResult struct {
	Activated      []ActivatedRule `json:"activated"`
	Skipped        []SkippedRule   `json:"skipped,omitempty"`
	TotalTokens    int             `json:"totalTokens"`
	BudgetExceeded bool            `json:"budgetExceeded"`

	// Patches holds the runtime-metadata updates for admitted rules.
	// The caller (or the stateful engine wrapper) applies them.
	Patches []MetadataPatch `json:"patches,omitempty"`
}

// TurnEvaluation is the persisted record of one turn's activation pass.
type TurnEvaluation struct {
	ID         string    `json:"id"`
	CampaignID string    `json:"campaignId"`
	SessionID  string    `json:"sessionId,omitempty"`
	TurnNumber int       `json:"turnNumber"`
	Status     string    `json:"status"` // "LORE" or "NONE"
	Timestamp  time.Time `json:"timestamp"`

	Activated      []ActivatedRule `json:"activated"`
	Skipped        []SkippedRule   `json:"skipped,omitempty"`
	TotalTokens    int             `json:"totalTokens"`
	BudgetExceeded bool            `json:"budgetExceeded"`

	// PromptBlock is the formatted injection text for the host's
	// prompt builder. Empty when nothing activated.
	PromptBlock string `json:"promptBlock,omitempty"`

	// Per-codex rollups (if codices are configured)
	CodexResults []CodexResult `json:"codexResults,omitempty"`

	Metadata EvaluationMetadata `json:"metadata"`
}

// EvaluationMetadata carries processing information for telemetry.
type EvaluationMetadata struct {
	TraceID        string `json:"traceId"`
	ContextMs      int64  `json:"contextMs"`
	ActivationMs   int64  `json:"activationMs"`
	ComposeMs      int64  `json:"composeMs"`
	TotalMs        int64  `json:"totalMs"`
	RulesEvaluated int    `json:"rulesEvaluated"`
	EngineVersion  string `json:"engineVersion"`
}

// Evaluation status constants.
const (
	StatusLore = "LORE" // at least one rule activated
	StatusNone = "NONE" // nothing activated this turn
)

// EvaluationResponse is the API shape of a turn evaluation.
type EvaluationResponse struct {
	EvaluationID   string             `json:"evaluationId"`
	SessionID      string             `json:"sessionId,omitempty"`
	TurnNumber     int                `json:"turnNumber"`
	Status         string             `json:"status"`
	Activated      []ActivatedRule    `json:"activated"`
	TotalTokens    int                `json:"totalTokens"`
	BudgetExceeded bool               `json:"budgetExceeded"`
	PromptBlock    string             `json:"promptBlock,omitempty"`
	Metadata       EvaluationMetadata `json:"metadata"`
}

// ToResponse converts a TurnEvaluation to its API shape.
func (e *TurnEvaluation) ToResponse() *EvaluationResponse {
	return &EvaluationResponse{
		EvaluationID:   e.ID,
		SessionID:      e.SessionID,
		TurnNumber:     e.TurnNumber,
		Status:         e.Status,
		Activated:      e.Activated,
		TotalTokens:    e.TotalTokens,
		BudgetExceeded: e.BudgetExceeded,
		PromptBlock:    e.PromptBlock,
		Metadata:       e.Metadata,
	}
}
