package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/loreweave/loreweave/internal/domain"
)

func TestSQLiteRepository(t *testing.T) {
	// Create temp database file
	tmpFile, err := os.CreateTemp("", "loreweave-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	campaignID := "campaign-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetRule", func(t *testing.T) {
		prob := 75.0
		sensitive := true
		rule := &domain.Rule{
			ID:                "rule-001",
			Title:             "Dragon of the North",
			PrimaryKeywords:   []string{"dragon", "wyrm"},
			SecondaryKeywords: []string{"north"},
			Logic:             domain.MatchAnyOf,
			Condition:         "turn > 2",
			CaseSensitive:     &sensitive,
			Probability:       &prob,
			Priority:          10,
			TokenWeight:       120,
			Content:           "An ancient dragon sleeps beneath the northern peaks.",
			Enabled:           true,
		}

		if err := repo.SaveRule(ctx, campaignID, rule); err != nil {
			t.Fatalf("SaveRule failed: %v", err)
		}

		retrieved, err := repo.GetRule(ctx, campaignID, rule.ID)
		if err != nil {
			t.Fatalf("GetRule failed: %v", err)
		}

		if retrieved.ID != rule.ID {
			t.Errorf("expected ID %s, got %s", rule.ID, retrieved.ID)
		}
		if retrieved.CampaignID != campaignID {
			t.Errorf("expected CampaignID %s, got %s", campaignID, retrieved.CampaignID)
		}
		if len(retrieved.PrimaryKeywords) != 2 {
			t.Errorf("expected 2 primary keywords, got %d", len(retrieved.PrimaryKeywords))
		}
		if retrieved.Logic != domain.MatchAnyOf {
			t.Errorf("expected logic anyOf, got %s", retrieved.Logic)
		}
		if retrieved.Probability == nil || *retrieved.Probability != prob {
			t.Errorf("expected probability %v, got %v", prob, retrieved.Probability)
		}
		if retrieved.CaseSensitive == nil || !*retrieved.CaseSensitive {
			t.Error("expected caseSensitive override to survive")
		}
		if retrieved.Content != rule.Content {
			t.Errorf("expected content %q, got %q", rule.Content, retrieved.Content)
		}
	})

	t.Run("SaveRuleUpsert", func(t *testing.T) {
		rule := &domain.Rule{
			ID:              "rule-001",
			PrimaryKeywords: []string{"dragon"},
			Logic:           domain.MatchAnyOf,
			Priority:        99,
			Content:         "Updated lore.",
			Enabled:         true,
		}

		if err := repo.SaveRule(ctx, campaignID, rule); err != nil {
			t.Fatalf("SaveRule (update) failed: %v", err)
		}

		retrieved, err := repo.GetRule(ctx, campaignID, "rule-001")
		if err != nil {
			t.Fatalf("GetRule failed: %v", err)
		}
		if retrieved.Priority != 99 {
			t.Errorf("expected updated priority 99, got %d", retrieved.Priority)
		}
		if retrieved.Content != "Updated lore." {
			t.Errorf("expected updated content, got %q", retrieved.Content)
		}
	})

	t.Run("ListRules", func(t *testing.T) {
		rule2 := &domain.Rule{
			ID:              "rule-002",
			PrimaryKeywords: []string{"tavern"},
			Logic:           domain.MatchAnyOf,
			Priority:        5,
			Content:         "The Rusty Anchor serves watered ale.",
			Enabled:         true,
		}
		if err := repo.SaveRule(ctx, campaignID, rule2); err != nil {
			t.Fatalf("SaveRule failed: %v", err)
		}

		rules, err := repo.ListRules(ctx, campaignID)
		if err != nil {
			t.Fatalf("ListRules failed: %v", err)
		}
		if len(rules) != 2 {
			t.Errorf("expected 2 rules, got %d", len(rules))
		}
	})

	t.Run("CampaignIsolation", func(t *testing.T) {
		otherCampaign := "campaign-002"

		_, err := repo.GetRule(ctx, otherCampaign, "rule-001")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound for different campaign, got: %v", err)
		}

		rules, err := repo.ListRules(ctx, otherCampaign)
		if err != nil {
			t.Fatalf("ListRules failed: %v", err)
		}
		if len(rules) != 0 {
			t.Errorf("expected 0 rules for other campaign, got %d", len(rules))
		}
	})

	t.Run("RequiresCampaignID", func(t *testing.T) {
		rule := &domain.Rule{ID: "rule-test", Content: "x", Logic: domain.MatchAnyOf}

		err := repo.SaveRule(ctx, "", rule)
		if err == nil {
			t.Error("expected error for empty campaignID")
		}

		_, err = repo.GetRule(ctx, "", "rule-001")
		if err == nil {
			t.Error("expected error for empty campaignID")
		}
	})

	t.Run("SaveGetDeleteCodex", func(t *testing.T) {
		codex := &domain.Codex{
			ID:         "codex-001",
			Name:       "Geography",
			TokenShare: 0.4,
			Version:    "1.0.0",
			Enabled:    true,
			CreatedAt:  time.Now().UTC(),
		}

		if err := repo.SaveCodex(ctx, campaignID, codex); err != nil {
			t.Fatalf("SaveCodex failed: %v", err)
		}

		retrieved, err := repo.GetCodex(ctx, campaignID, codex.ID)
		if err != nil {
			t.Fatalf("GetCodex failed: %v", err)
		}
		if retrieved.Name != codex.Name {
			t.Errorf("expected Name %s, got %s", codex.Name, retrieved.Name)
		}
		if retrieved.TokenShare != codex.TokenShare {
			t.Errorf("expected TokenShare %.2f, got %.2f", codex.TokenShare, retrieved.TokenShare)
		}

		codices, err := repo.ListCodices(ctx, campaignID)
		if err != nil {
			t.Fatalf("ListCodices failed: %v", err)
		}
		if len(codices) != 1 {
			t.Errorf("expected 1 codex, got %d", len(codices))
		}

		if err := repo.DeleteCodex(ctx, campaignID, codex.ID); err != nil {
			t.Fatalf("DeleteCodex failed: %v", err)
		}

		// Soft delete: the row survives disabled, listings drop it.
		deleted, err := repo.GetCodex(ctx, campaignID, codex.ID)
		if err != nil {
			t.Fatalf("GetCodex after delete failed: %v", err)
		}
		if deleted.Enabled {
			t.Error("expected codex to be disabled after delete")
		}

		codices, err = repo.ListCodices(ctx, campaignID)
		if err != nil {
			t.Fatalf("ListCodices failed: %v", err)
		}
		if len(codices) != 0 {
			t.Errorf("expected 0 codices after delete, got %d", len(codices))
		}
	})

	t.Run("DeleteCodexNotFound", func(t *testing.T) {
		err := repo.DeleteCodex(ctx, campaignID, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("SessionLifecycle", func(t *testing.T) {
		session := &domain.Session{
			ID:         "session-001",
			CampaignID: campaignID,
			Name:       "The Sunken Keep",
			TurnNumber: 0,
			CreatedAt:  time.Now().UTC(),
			UpdatedAt:  time.Now().UTC(),
		}

		if err := repo.SaveSession(ctx, campaignID, session); err != nil {
			t.Fatalf("SaveSession failed: %v", err)
		}

		retrieved, err := repo.GetSession(ctx, campaignID, session.ID)
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if retrieved.Name != session.Name {
			t.Errorf("expected Name %s, got %s", session.Name, retrieved.Name)
		}

		// Advance the turn counter and upsert.
		session.TurnNumber = 3
		if err := repo.SaveSession(ctx, campaignID, session); err != nil {
			t.Fatalf("SaveSession (update) failed: %v", err)
		}
		retrieved, _ = repo.GetSession(ctx, campaignID, session.ID)
		if retrieved.TurnNumber != 3 {
			t.Errorf("expected TurnNumber 3, got %d", retrieved.TurnNumber)
		}
	})

	t.Run("TurnEntries", func(t *testing.T) {
		entries := []*domain.TurnEntry{
			{ID: "entry-001", SessionID: "session-001", TurnNumber: 1, Role: domain.RolePlayer, Text: "I open the door", CreatedAt: time.Now().UTC()},
			{ID: "entry-002", SessionID: "session-001", TurnNumber: 1, Role: domain.RoleAI, Text: "The door creaks open", CreatedAt: time.Now().UTC().Add(time.Millisecond)},
			{ID: "entry-003", SessionID: "session-001", TurnNumber: 2, Role: domain.RolePlayer, Text: "I step inside", CreatedAt: time.Now().UTC().Add(2 * time.Millisecond)},
		}
		for _, e := range entries {
			if err := repo.AppendTurnEntry(ctx, campaignID, "session-001", e); err != nil {
				t.Fatalf("AppendTurnEntry failed: %v", err)
			}
		}

		listed, err := repo.ListTurnEntries(ctx, campaignID, "session-001", 10)
		if err != nil {
			t.Fatalf("ListTurnEntries failed: %v", err)
		}
		if len(listed) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(listed))
		}
		// Oldest first, so the context collector sees chronological order.
		if listed[0].Text != "I open the door" {
			t.Errorf("expected oldest entry first, got %q", listed[0].Text)
		}
		if listed[2].Role != domain.RolePlayer {
			t.Errorf("expected newest entry role player, got %s", listed[2].Role)
		}

		limited, err := repo.ListTurnEntries(ctx, campaignID, "session-001", 2)
		if err != nil {
			t.Fatalf("ListTurnEntries (limit) failed: %v", err)
		}
		if len(limited) != 2 {
			t.Fatalf("expected 2 entries with limit, got %d", len(limited))
		}
		// A limit keeps the most recent entries.
		if limited[0].Text != "The door creaks open" {
			t.Errorf("expected limit to keep newest entries, got %q first", limited[0].Text)
		}
	})

	t.Run("Memories", func(t *testing.T) {
		memories := []*domain.Memory{
			{Text: "The innkeeper owes you a favor"},
			{Text: "You swore an oath to the queen", Pinned: true, Importance: 90},
		}
		for _, m := range memories {
			if err := repo.AppendMemory(ctx, campaignID, "session-001", m); err != nil {
				t.Fatalf("AppendMemory failed: %v", err)
			}
		}

		listed, err := repo.ListMemories(ctx, campaignID, "session-001")
		if err != nil {
			t.Fatalf("ListMemories failed: %v", err)
		}
		if len(listed) != 2 {
			t.Fatalf("expected 2 memories, got %d", len(listed))
		}
		if !listed[1].Pinned || listed[1].Importance != 90 {
			t.Errorf("expected pinned memory with importance 90, got %+v", listed[1])
		}
	})

	t.Run("SaveAndGetEvaluation", func(t *testing.T) {
		eval := &domain.TurnEvaluation{
			ID:         "eval-001",
			CampaignID: campaignID,
			SessionID:  "session-001",
			TurnNumber: 2,
			Status:     domain.StatusLore,
			Timestamp:  time.Now().UTC(),
			Activated: []domain.ActivatedRule{
				{RuleID: "rule-001", Reason: "matched keywords", TokenCost: 120, Priority: 10, Content: "lore"},
			},
			TotalTokens: 120,
			PromptBlock: "=== LORE ===",
			Metadata:    domain.EvaluationMetadata{TraceID: "trace-001"},
		}

		if err := repo.SaveEvaluation(ctx, campaignID, eval); err != nil {
			t.Fatalf("SaveEvaluation failed: %v", err)
		}

		retrieved, err := repo.GetEvaluation(ctx, campaignID, eval.ID)
		if err != nil {
			t.Fatalf("GetEvaluation failed: %v", err)
		}
		if retrieved.Status != domain.StatusLore {
			t.Errorf("expected Status %s, got %s", domain.StatusLore, retrieved.Status)
		}
		if retrieved.TotalTokens != 120 {
			t.Errorf("expected TotalTokens 120, got %d", retrieved.TotalTokens)
		}
		if len(retrieved.Activated) != 1 {
			t.Errorf("expected 1 activated rule, got %d", len(retrieved.Activated))
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetRule(ctx, campaignID, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}

		_, err = repo.GetSession(ctx, campaignID, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}

		_, err = repo.GetEvaluation(ctx, campaignID, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
