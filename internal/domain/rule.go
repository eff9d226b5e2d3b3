package domain

// LogicMode selects how a rule's keyword match results are combined.
type LogicMode string

const (
	// MatchAnyOf activates on any primary or secondary keyword hit.
	MatchAnyOf LogicMode = "anyOf"

	// MatchAllOf requires every configured keyword in both lists to hit.
	MatchAllOf LogicMode = "allOf"

	// MatchNotAll activates on a partial match: more than zero hits,
	// fewer than the full configured keyword count.
	MatchNotAll LogicMode = "notAll"

	// MatchNoneOf activates only when nothing matched.
	MatchNoneOf LogicMode = "noneOf"
)

// Valid reports whether m is one of the four recognized logic modes.
func (m LogicMode) Valid() bool {
	switch m {
	case MatchAnyOf, MatchAllOf, MatchNotAll, MatchNoneOf:
		return true
	}
	return false
}

// Rule is an author-defined lore snippet with an activation predicate.
// The engine decides each turn whether its Content gets injected into
// the AI prompt.
type Rule struct {
	ID         string `json:"id" yaml:"id"`
	CampaignID string `json:"campaignId,omitempty" yaml:"campaignId,omitempty"`
	CodexID    string `json:"codexId,omitempty" yaml:"codexId,omitempty"`
	Title      string `json:"title,omitempty" yaml:"title,omitempty"`

	// Activation predicate
	PrimaryKeywords   []string  `json:"primaryKeywords,omitempty" yaml:"primaryKeywords,omitempty"`
	SecondaryKeywords []string  `json:"secondaryKeywords,omitempty" yaml:"secondaryKeywords,omitempty"`
	Logic             LogicMode `json:"logic,omitempty" yaml:"logic,omitempty"`
	AlwaysActive      bool      `json:"alwaysActive,omitempty" yaml:"alwaysActive,omitempty"`

	// Optional CEL condition over turn state, checked after keyword
	// logic. Empty means unconditional.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	// Matching configuration. Pointer fields override the context
	// defaults when non-nil.
	CaseSensitive *bool `json:"caseSensitive,omitempty" yaml:"caseSensitive,omitempty"`
	WholeWord     *bool `json:"wholeWord,omitempty" yaml:"wholeWord,omitempty"`
	ScanDepth     int   `json:"scanDepth,omitempty" yaml:"scanDepth,omitempty"`
	ScanPlayer    *bool `json:"scanPlayer,omitempty" yaml:"scanPlayer,omitempty"`
	ScanAI        *bool `json:"scanAI,omitempty" yaml:"scanAI,omitempty"`
	ScanMemories  *bool `json:"scanMemories,omitempty" yaml:"scanMemories,omitempty"`

	// Budget and throttling. Probability is 0-100; nil means 100
	// (always pass), while an explicit 0 means never.
	TokenWeight int      `json:"tokenWeight,omitempty" yaml:"tokenWeight,omitempty"` // 0 = estimate from content
	Probability *float64 `json:"probability,omitempty" yaml:"probability,omitempty"`
	MaxPerTurn  int      `json:"maxPerTurn,omitempty" yaml:"maxPerTurn,omitempty"` // 0 = unlimited
	Priority    int      `json:"priority" yaml:"priority"`

	// Payload
	Content string `json:"content" yaml:"content"`

	// Whether the rule participates in evaluation at all.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Runtime metadata, updated by applying MetadataPatch entries.
	LastActivated   int `json:"lastActivated,omitempty" yaml:"lastActivated,omitempty"`
	ActivationCount int `json:"activationCount,omitempty" yaml:"activationCount,omitempty"`
}

// ScanPlayerEnabled reports whether player input scanning is on
// (default true).
func (r *Rule) ScanPlayerEnabled() bool { return r.ScanPlayer == nil || *r.ScanPlayer }

// ScanAIEnabled reports whether AI output scanning is on (default true).
func (r *Rule) ScanAIEnabled() bool { return r.ScanAI == nil || *r.ScanAI }

// ScanMemoriesEnabled reports whether memory scanning is on (default true).
func (r *Rule) ScanMemoriesEnabled() bool { return r.ScanMemories == nil || *r.ScanMemories }

// ActivationProbability returns the configured probability, defaulting
// to 100 when unset.
func (r *Rule) ActivationProbability() float64 {
	if r.Probability == nil {
		return 100
	}
	return *r.Probability
}

// ActivatedRule is one admitted rule in an activation result.
type ActivatedRule struct {
	RuleID          string   `json:"ruleId"`
	Title           string   `json:"title,omitempty"`
	MatchedKeywords []string `json:"matchedKeywords,omitempty"`
	Reason          string   `json:"reason"`
	TokenCost       int      `json:"tokenCost"`
	Priority        int      `json:"priority"`
	Content         string   `json:"content"`
	CodexID         string   `json:"codexId,omitempty"`
}

// SkippedRule records a rule that was evaluated but not admitted.
type SkippedRule struct {
	RuleID string `json:"ruleId"`
	Reason string `json:"reason"`
}

// MetadataPatch is the runtime-metadata update produced by a successful
// activation. The engine's decision core is pure; patches are applied
// to the rule pool by the stateful wrapper.
type MetadataPatch struct {
	RuleID          string `json:"ruleId"`
	LastActivated   int    `json:"lastActivated"`
	ActivationCount int    `json:"activationCount"`
}
