package activation

import (
	"strings"
	"testing"

	"github.com/loreweave/loreweave/internal/domain"
)

func TestFormatPromptBlock(t *testing.T) {
	result := &domain.ActivationResult{
		Activated: []domain.ActivatedRule{
			{
				RuleID:          "dragon-lore",
				Title:           "Dragon Lore",
				MatchedKeywords: []string{"dragon", "wyrm"},
				Priority:        10,
				Content:         "Dragons hoard gold.",
				TokenCost:       5,
			},
			{
				RuleID:    "untitled-rule",
				Priority:  5,
				Content:   "More lore.",
				TokenCost: 3,
			},
		},
		TotalTokens: 8,
	}

	block := FormatPromptBlock(result)

	if !strings.HasPrefix(block, "=== ACTIVE LORE ===\n") {
		t.Errorf("missing header: %q", block)
	}
	if !strings.Contains(block, "## Dragon Lore (priority 10)\n") {
		t.Errorf("missing titled sub-block: %q", block)
	}
	if !strings.Contains(block, "Keywords: dragon, wyrm\n") {
		t.Errorf("missing keywords line: %q", block)
	}
	// Untitled rules fall back to their ID.
	if !strings.Contains(block, "## Rule untitled-rule (priority 5)\n") {
		t.Errorf("missing fallback title: %q", block)
	}
	if !strings.HasSuffix(block, "=== END LORE (2 rules, 8 tokens) ===") {
		t.Errorf("missing footer: %q", block)
	}

	// Rules appear in result order.
	if strings.Index(block, "Dragon Lore") > strings.Index(block, "untitled-rule") {
		t.Error("rules should render in activation order")
	}
}

func TestFormatPromptBlockOmitsKeywordsWhenNoneMatched(t *testing.T) {
	result := &domain.ActivationResult{
		Activated: []domain.ActivatedRule{
			{RuleID: "always", Title: "Always", Priority: 1, Content: "x"},
		},
	}
	block := FormatPromptBlock(result)
	if strings.Contains(block, "Keywords:") {
		t.Errorf("keywords line should be omitted when nothing matched: %q", block)
	}
}

func TestFormatPromptBlockEmpty(t *testing.T) {
	if got := FormatPromptBlock(nil); got != "" {
		t.Errorf("nil result should format to empty string, got %q", got)
	}
	if got := FormatPromptBlock(&domain.ActivationResult{}); got != "" {
		t.Errorf("empty result should format to empty string, got %q", got)
	}
}
