package activation

import (
	"fmt"
	"strings"

	"github.com/loreweave/loreweave/internal/domain"
)

// FormatPromptBlock renders an activation result as a single text block
// for injection into the AI prompt: header, one sub-block per activated
// rule in final order, and a footer carrying the count and token total.
// Returns an empty string when nothing activated.
func FormatPromptBlock(result *domain.ActivationResult) string {
	if result == nil || len(result.Activated) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("=== ACTIVE LORE ===\n")

	for _, ar := range result.Activated {
		title := ar.Title
		if title == "" {
			title = "Rule " + ar.RuleID
		}
		fmt.Fprintf(&b, "## %s (priority %d)\n", title, ar.Priority)
		if len(ar.MatchedKeywords) > 0 {
			fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(ar.MatchedKeywords, ", "))
		}
		b.WriteString(ar.Content)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "=== END LORE (%d rules, %d tokens) ===", len(result.Activated), result.TotalTokens)
	return b.String()
}
