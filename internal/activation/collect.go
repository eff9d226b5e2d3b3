package activation

import (
	"strings"

	"github.com/loreweave/loreweave/internal/domain"
)

// aiHistorySlice is how many recent AI-authored history entries are
// always scanned, independent of the configured depth. Recent AI
// narration matters more than the depth setting suggests; this mirrors
// the host application's behavior and is deliberate.
const aiHistorySlice = 3

// memoryImportanceFloor is the importance a pinned memory needs to be
// eligible for scanning.
const memoryImportanceFloor = 70

// CollectScanText concatenates the text sources a rule is configured to
// scan, in fixed order: player input, AI response, the last few
// AI-authored history entries, player-authored history within scan
// depth, then eligible memories within scan depth. Returns the trimmed
// result; empty means the rule has nothing to match against.
func CollectScanText(rule *domain.Rule, tc *domain.TurnContext) string {
	var parts []string

	if rule.ScanPlayerEnabled() && tc.PlayerInput != "" {
		parts = append(parts, tc.PlayerInput)
	}

	if rule.ScanAIEnabled() && tc.AIResponse != "" {
		parts = append(parts, tc.AIResponse)
	}

	if rule.ScanAIEnabled() {
		// Last N AI-authored entries, regardless of depth.
		aiEntries := make([]string, 0, aiHistorySlice)
		for i := len(tc.History) - 1; i >= 0 && len(aiEntries) < aiHistorySlice; i-- {
			e := tc.History[i]
			if e.Role == domain.RoleAI {
				aiEntries = append(aiEntries, strings.Join(e.Parts, " "))
			}
		}
		// Restore chronological order.
		for i := len(aiEntries) - 1; i >= 0; i-- {
			if aiEntries[i] != "" {
				parts = append(parts, aiEntries[i])
			}
		}
	}

	depth := tc.Depth(rule)

	if rule.ScanPlayerEnabled() {
		window := tc.History
		if len(window) > depth {
			window = window[len(window)-depth:]
		}
		for _, e := range window {
			if e.Role == domain.RolePlayer {
				if text := strings.Join(e.Parts, " "); text != "" {
					parts = append(parts, text)
				}
			}
		}
	}

	if rule.ScanMemoriesEnabled() {
		eligible := make([]domain.Memory, 0, len(tc.Memories))
		for _, m := range tc.Memories {
			if !m.Pinned || m.Importance > memoryImportanceFloor {
				eligible = append(eligible, m)
			}
		}
		if len(eligible) > depth {
			eligible = eligible[len(eligible)-depth:]
		}
		for _, m := range eligible {
			if m.Text != "" {
				parts = append(parts, m.Text)
			}
		}
	}

	return strings.TrimSpace(strings.Join(parts, " "))
}
