package domain

// History entry roles.
const (
	RolePlayer = "player"
	RoleAI     = "ai"
)

// HistoryEntry is one role-tagged entry in the recent turn history.
type HistoryEntry struct {
	Role  string   `json:"role"`
	Parts []string `json:"parts"`
}

// Memory is one entry in the session's memory list.
type Memory struct {
	Text       string  `json:"text"`
	Pinned     bool    `json:"pinned,omitempty"`
	Importance float64 `json:"importance,omitempty"`
}

// TurnContext is the per-turn snapshot the engine evaluates rules
// against. Built fresh each turn by the caller; the engine treats it as
// read-only.
type TurnContext struct {
	CampaignID string `json:"campaignId,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`

	PlayerInput string         `json:"playerInput"`
	AIResponse  string         `json:"aiResponse,omitempty"`
	History     []HistoryEntry `json:"history,omitempty"`
	Memories    []Memory       `json:"memories,omitempty"`
	TurnNumber  int            `json:"turnNumber"`

	// Defaults used when a rule does not override them.
	TokenBudget   int  `json:"tokenBudget,omitempty"` // 0 = DefaultTokenBudget
	ScanDepth     int  `json:"scanDepth,omitempty"`   // 0 = DefaultScanDepth
	CaseSensitive bool `json:"caseSensitive,omitempty"`
	WholeWord     bool `json:"wholeWord,omitempty"`
}

// Engine-wide fallbacks for context defaults left unset.
const (
	DefaultTokenBudget = 5000
	DefaultScanDepth   = 5
)

// Budget returns the token budget, falling back to the default.
func (c *TurnContext) Budget() int {
	if c.TokenBudget > 0 {
		return c.TokenBudget
	}
	return DefaultTokenBudget
}

// Depth resolves the scan depth for a rule: rule override, else context
// default, else DefaultScanDepth.
func (c *TurnContext) Depth(rule *Rule) int {
	if rule != nil && rule.ScanDepth > 0 {
		return rule.ScanDepth
	}
	if c.ScanDepth > 0 {
		return c.ScanDepth
	}
	return DefaultScanDepth
}
