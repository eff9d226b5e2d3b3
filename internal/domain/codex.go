package domain

import "time"

// Codex groups rules into a named lorebook, scoped to a campaign.
// A codex may claim a share of the per-turn token budget so one book
// cannot crowd out the others.
type Codex struct {
	ID          string `json:"id" yaml:"id"`
	CampaignID  string `json:"campaignId,omitempty" yaml:"campaignId,omitempty"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`

	// TokenShare is the fraction of the turn budget this codex is
	// expected to stay within (0 = no expectation).
	TokenShare float64 `json:"tokenShare,omitempty" yaml:"tokenShare,omitempty"`

	Enabled bool `json:"enabled" yaml:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// CodexResult is the per-codex rollup of one activation pass.
type CodexResult struct {
	CodexID    string `json:"codexId"`
	CodexName  string `json:"codexName"`
	RulesFired int    `json:"rulesFired"`
	TokensUsed int    `json:"tokensUsed"`

	// Saturated is set when the codex consumed more than its
	// configured share of the turn budget.
	Saturated bool `json:"saturated,omitempty"`
}
