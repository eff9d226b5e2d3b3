// Package session manages playthrough state: role-tagged turn history
// and memories per session, and builds the per-turn activation context
// the engine consumes.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loreweave/loreweave/internal/domain"
)

// maxHistoryEntries bounds how much turn history is loaded into a
// context. Matching never looks further back than the scan depth and
// the fixed AI slice, so a small window is plenty.
const maxHistoryEntries = 50

// snapshotTTL is how long a cached session snapshot stays valid.
const snapshotTTL = 5 * time.Minute

// Service builds turn contexts from persisted session state.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a session service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// CreateSession starts a new session for a campaign.
func (s *Service) CreateSession(ctx context.Context, campaignID, name string) (*domain.Session, error) {
	if campaignID == "" {
		return nil, fmt.Errorf("campaignID is required")
	}

	now := time.Now().UTC()
	session := &domain.Session{
		ID:         uuid.New().String(),
		CampaignID: campaignID,
		Name:       name,
		TurnNumber: 0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if s.repo != nil {
		if err := s.repo.SaveSession(ctx, campaignID, session); err != nil {
			return nil, fmt.Errorf("failed to save session: %w", err)
		}
	}
	return session, nil
}

// GetSession fetches a session.
func (s *Service) GetSession(ctx context.Context, campaignID, sessionID string) (*domain.Session, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("no data source available")
	}
	return s.repo.GetSession(ctx, campaignID, sessionID)
}

// AppendTurn records one history entry. Player entries advance the
// session's turn number.
func (s *Service) AppendTurn(ctx context.Context, campaignID, sessionID, role, text string) (*domain.Session, error) {
	if campaignID == "" || sessionID == "" {
		return nil, fmt.Errorf("campaignID and sessionID are required")
	}
	if role != domain.RolePlayer && role != domain.RoleAI {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("entry text is required")
	}
	if s.repo == nil {
		return nil, fmt.Errorf("no data source available")
	}

	session, err := s.repo.GetSession(ctx, campaignID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	turnNumber := session.TurnNumber
	if role == domain.RolePlayer {
		turnNumber++
	}

	entry := &domain.TurnEntry{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		TurnNumber: turnNumber,
		Role:       role,
		Text:       text,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.AppendTurnEntry(ctx, campaignID, sessionID, entry); err != nil {
		return nil, fmt.Errorf("failed to append turn entry: %w", err)
	}

	if turnNumber != session.TurnNumber {
		session.TurnNumber = turnNumber
		session.UpdatedAt = time.Now().UTC()
		if err := s.repo.SaveSession(ctx, campaignID, session); err != nil {
			return nil, fmt.Errorf("failed to update session: %w", err)
		}
	}

	s.invalidateSnapshot(ctx, campaignID, sessionID)
	return session, nil
}

// AddMemory appends a memory entry to a session.
func (s *Service) AddMemory(ctx context.Context, campaignID, sessionID string, memory *domain.Memory) error {
	if campaignID == "" || sessionID == "" {
		return fmt.Errorf("campaignID and sessionID are required")
	}
	if memory == nil || strings.TrimSpace(memory.Text) == "" {
		return fmt.Errorf("memory text is required")
	}
	if s.repo == nil {
		return fmt.Errorf("no data source available")
	}

	if err := s.repo.AppendMemory(ctx, campaignID, sessionID, memory); err != nil {
		return fmt.Errorf("failed to append memory: %w", err)
	}

	s.invalidateSnapshot(ctx, campaignID, sessionID)
	return nil
}

// BuildContext assembles the activation context for the next turn of a
// session: persisted history and memories plus the incoming player
// input and latest AI response. Engine defaults fill the unset fields.
func (s *Service) BuildContext(ctx context.Context, campaignID, sessionID, playerInput, aiResponse string, defaults domain.EngineConfig) (*domain.TurnContext, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("no data source available")
	}

	snap, err := s.loadSnapshot(ctx, campaignID, sessionID)
	if err != nil {
		return nil, err
	}

	return &domain.TurnContext{
		CampaignID:    campaignID,
		SessionID:     sessionID,
		PlayerInput:   playerInput,
		AIResponse:    aiResponse,
		History:       snap.History,
		Memories:      snap.Memories,
		TurnNumber:    snap.TurnNumber + 1,
		TokenBudget:   defaults.TokenBudget,
		ScanDepth:     defaults.ScanDepth,
		CaseSensitive: defaults.CaseSensitive,
		WholeWord:     defaults.WholeWord,
	}, nil
}

// loadSnapshot fetches the session state, preferring the cache.
func (s *Service) loadSnapshot(ctx context.Context, campaignID, sessionID string) (*domain.ContextSnapshot, error) {
	if s.cache != nil {
		snap, err := s.cache.GetContext(ctx, campaignID, sessionID)
		if err == nil && snap != nil {
			return snap, nil
		}
	}

	session, err := s.repo.GetSession(ctx, campaignID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	entries, err := s.repo.ListTurnEntries(ctx, campaignID, sessionID, maxHistoryEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to load turn entries: %w", err)
	}

	memories, err := s.repo.ListMemories(ctx, campaignID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load memories: %w", err)
	}

	snap := &domain.ContextSnapshot{
		SessionID:  sessionID,
		TurnNumber: session.TurnNumber,
		History:    make([]domain.HistoryEntry, 0, len(entries)),
		Memories:   make([]domain.Memory, 0, len(memories)),
		CachedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	for _, e := range entries {
		snap.History = append(snap.History, domain.HistoryEntry{
			Role:  e.Role,
			Parts: []string{e.Text},
		})
	}
	for _, m := range memories {
		snap.Memories = append(snap.Memories, *m)
	}

	if s.cache != nil {
		// Best effort; a cold cache just means extra repository reads.
		_ = s.cache.SetContext(ctx, campaignID, sessionID, snap, snapshotTTL)
	}
	return snap, nil
}

func (s *Service) invalidateSnapshot(ctx context.Context, campaignID, sessionID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, campaignID, "context:"+sessionID)
}
