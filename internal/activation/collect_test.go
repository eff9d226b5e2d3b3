package activation

import (
	"strings"
	"testing"

	"github.com/loreweave/loreweave/internal/domain"
)

func TestCollectScanTextOrder(t *testing.T) {
	rule := &domain.Rule{ID: "r", Enabled: true}
	tc := &domain.TurnContext{
		PlayerInput: "open the door",
		AIResponse:  "the door creaks",
		History: []domain.HistoryEntry{
			{Role: domain.RolePlayer, Parts: []string{"look around"}},
			{Role: domain.RoleAI, Parts: []string{"you see a hallway"}},
		},
		Memories: []domain.Memory{
			{Text: "the key is rusty"},
		},
	}

	text := CollectScanText(rule, tc)
	want := "open the door the door creaks you see a hallway look around the key is rusty"
	if text != want {
		t.Errorf("unexpected scan text:\n got %q\nwant %q", text, want)
	}
}

func TestCollectScanTextAISliceIsFixed(t *testing.T) {
	// Five AI entries in history; only the last three are scanned, in
	// chronological order, regardless of scan depth.
	history := []domain.HistoryEntry{
		{Role: domain.RoleAI, Parts: []string{"one"}},
		{Role: domain.RoleAI, Parts: []string{"two"}},
		{Role: domain.RoleAI, Parts: []string{"three"}},
		{Role: domain.RoleAI, Parts: []string{"four"}},
		{Role: domain.RoleAI, Parts: []string{"five"}},
	}
	rule := &domain.Rule{ID: "r", ScanDepth: 1, Enabled: true}
	tc := &domain.TurnContext{History: history}

	text := CollectScanText(rule, tc)
	if strings.Contains(text, "one") || strings.Contains(text, "two") {
		t.Errorf("AI slice should only cover the last 3 entries, got %q", text)
	}
	if text != "three four five" {
		t.Errorf("expected chronological AI slice, got %q", text)
	}
}

func TestCollectScanTextPlayerHistoryWithinDepth(t *testing.T) {
	history := []domain.HistoryEntry{
		{Role: domain.RolePlayer, Parts: []string{"ancient move"}},
		{Role: domain.RolePlayer, Parts: []string{"old move"}},
		{Role: domain.RolePlayer, Parts: []string{"recent move"}},
	}
	rule := &domain.Rule{ID: "r", ScanDepth: 2, Enabled: true}
	tc := &domain.TurnContext{History: history}

	text := CollectScanText(rule, tc)
	if strings.Contains(text, "ancient move") {
		t.Errorf("player history beyond depth should be excluded, got %q", text)
	}
	if !strings.Contains(text, "old move") || !strings.Contains(text, "recent move") {
		t.Errorf("player history within depth should be included, got %q", text)
	}
}

func TestCollectScanTextToggles(t *testing.T) {
	off := false
	tc := &domain.TurnContext{
		PlayerInput: "player text",
		AIResponse:  "ai text",
		Memories:    []domain.Memory{{Text: "memory text"}},
	}

	rule := &domain.Rule{ID: "r", ScanPlayer: &off, Enabled: true}
	if text := CollectScanText(rule, tc); strings.Contains(text, "player text") {
		t.Errorf("scanPlayer off should drop player input, got %q", text)
	}

	rule = &domain.Rule{ID: "r", ScanAI: &off, Enabled: true}
	if text := CollectScanText(rule, tc); strings.Contains(text, "ai text") {
		t.Errorf("scanAI off should drop AI response, got %q", text)
	}

	rule = &domain.Rule{ID: "r", ScanMemories: &off, Enabled: true}
	if text := CollectScanText(rule, tc); strings.Contains(text, "memory text") {
		t.Errorf("scanMemories off should drop memories, got %q", text)
	}
}

func TestCollectScanTextMemoryEligibility(t *testing.T) {
	rule := &domain.Rule{ID: "r", Enabled: true}
	tc := &domain.TurnContext{
		Memories: []domain.Memory{
			{Text: "plain memory"},                                  // eligible: not pinned
			{Text: "pinned low", Pinned: true, Importance: 30},      // ineligible
			{Text: "pinned critical", Pinned: true, Importance: 90}, // eligible: important enough
		},
	}

	text := CollectScanText(rule, tc)
	if !strings.Contains(text, "plain memory") {
		t.Error("unpinned memory should be scanned")
	}
	if strings.Contains(text, "pinned low") {
		t.Error("pinned low-importance memory must not be scanned")
	}
	if !strings.Contains(text, "pinned critical") {
		t.Error("pinned high-importance memory should be scanned")
	}
}

func TestCollectScanTextMemoryDepthWindow(t *testing.T) {
	rule := &domain.Rule{ID: "r", ScanDepth: 2, Enabled: true}
	tc := &domain.TurnContext{
		Memories: []domain.Memory{
			{Text: "oldest"},
			{Text: "middle"},
			{Text: "newest"},
		},
	}

	text := CollectScanText(rule, tc)
	if strings.Contains(text, "oldest") {
		t.Errorf("memories beyond depth should be excluded, got %q", text)
	}
	if text != "middle newest" {
		t.Errorf("expected last-depth memories in order, got %q", text)
	}
}

func TestCollectScanTextEmpty(t *testing.T) {
	rule := &domain.Rule{ID: "r", Enabled: true}
	if text := CollectScanText(rule, &domain.TurnContext{}); text != "" {
		t.Errorf("empty context should yield empty scan text, got %q", text)
	}
}
