// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loreweave/loreweave/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// ruleMatching is the JSON shape of a rule's per-source matching
// overrides, stored in one column since every field is optional.
type ruleMatching struct {
	CaseSensitive *bool `json:"caseSensitive,omitempty"`
	WholeWord     *bool `json:"wholeWord,omitempty"`
	ScanPlayer    *bool `json:"scanPlayer,omitempty"`
	ScanAI        *bool `json:"scanAI,omitempty"`
	ScanMemories  *bool `json:"scanMemories,omitempty"`
}

// SaveRule stores a rule with campaign isolation.
func (r *SQLRepository) SaveRule(ctx context.Context, campaignID string, rule *domain.Rule) error {
	if campaignID == "" {
		return fmt.Errorf("%w: campaignID is required", ErrInvalidInput)
	}
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule with id is required", ErrInvalidInput)
	}

	primary, _ := json.Marshal(rule.PrimaryKeywords)
	secondary, _ := json.Marshal(rule.SecondaryKeywords)
	matching, _ := json.Marshal(ruleMatching{
		CaseSensitive: rule.CaseSensitive,
		WholeWord:     rule.WholeWord,
		ScanPlayer:    rule.ScanPlayer,
		ScanAI:        rule.ScanAI,
		ScanMemories:  rule.ScanMemories,
	})

	var probability sql.NullFloat64
	if rule.Probability != nil {
		probability = sql.NullFloat64{Float64: *rule.Probability, Valid: true}
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rules (
			id, campaign_id, codex_id, title,
			primary_keywords, secondary_keywords, logic, always_active, condition, matching,
			scan_depth, token_weight, probability, max_per_turn, priority,
			content, enabled, last_activated, activation_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, campaign_id) DO UPDATE SET
			codex_id = excluded.codex_id,
			title = excluded.title,
			primary_keywords = excluded.primary_keywords,
			secondary_keywords = excluded.secondary_keywords,
			logic = excluded.logic,
			always_active = excluded.always_active,
			condition = excluded.condition,
			matching = excluded.matching,
			scan_depth = excluded.scan_depth,
			token_weight = excluded.token_weight,
			probability = excluded.probability,
			max_per_turn = excluded.max_per_turn,
			priority = excluded.priority,
			content = excluded.content,
			enabled = excluded.enabled,
			last_activated = excluded.last_activated,
			activation_count = excluded.activation_count,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, campaignID, rule.CodexID, rule.Title,
		string(primary), string(secondary), string(rule.Logic), boolToInt(rule.AlwaysActive),
		rule.Condition, string(matching),
		rule.ScanDepth, rule.TokenWeight, probability, rule.MaxPerTurn, rule.Priority,
		rule.Content, boolToInt(rule.Enabled), rule.LastActivated, rule.ActivationCount,
		now, now,
	)
	return err
}

const ruleColumns = `id, campaign_id, codex_id, title,
	primary_keywords, secondary_keywords, logic, always_active, condition, matching,
	scan_depth, token_weight, probability, max_per_turn, priority,
	content, enabled, last_activated, activation_count`

func scanRule(scan func(dest ...any) error) (*domain.Rule, error) {
	var rule domain.Rule
	var codexID, title, condition sql.NullString
	var primary, secondary, matching string
	var logic string
	var alwaysActive, enabled int
	var probability sql.NullFloat64

	if err := scan(
		&rule.ID, &rule.CampaignID, &codexID, &title,
		&primary, &secondary, &logic, &alwaysActive, &condition, &matching,
		&rule.ScanDepth, &rule.TokenWeight, &probability, &rule.MaxPerTurn, &rule.Priority,
		&rule.Content, &enabled, &rule.LastActivated, &rule.ActivationCount,
	); err != nil {
		return nil, err
	}

	rule.CodexID = codexID.String
	rule.Title = title.String
	rule.Condition = condition.String
	rule.Logic = domain.LogicMode(logic)
	rule.AlwaysActive = alwaysActive == 1
	rule.Enabled = enabled == 1
	if probability.Valid {
		p := probability.Float64
		rule.Probability = &p
	}

	json.Unmarshal([]byte(primary), &rule.PrimaryKeywords)
	json.Unmarshal([]byte(secondary), &rule.SecondaryKeywords)

	var m ruleMatching
	if matching != "" {
		json.Unmarshal([]byte(matching), &m)
	}
	rule.CaseSensitive = m.CaseSensitive
	rule.WholeWord = m.WholeWord
	rule.ScanPlayer = m.ScanPlayer
	rule.ScanAI = m.ScanAI
	rule.ScanMemories = m.ScanMemories

	return &rule, nil
}

// GetRule retrieves a rule by ID with campaign isolation.
func (r *SQLRepository) GetRule(ctx context.Context, campaignID string, ruleID string) (*domain.Rule, error) {
	if campaignID == "" {
		return nil, fmt.Errorf("%w: campaignID is required", ErrInvalidInput)
	}

	query := `SELECT ` + ruleColumns + ` FROM rules WHERE campaign_id = ? AND id = ?`

	row := r.db.QueryRowContext(ctx, r.rebind(query), campaignID, ruleID)
	rule, err := scanRule(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// ListRules retrieves all rules for a campaign, highest priority first.
func (r *SQLRepository) ListRules(ctx context.Context, campaignID string) ([]*domain.Rule, error) {
	if campaignID == "" {
		return nil, fmt.Errorf("%w: campaignID is required", ErrInvalidInput)
	}

	query := `SELECT ` + ruleColumns + ` FROM rules WHERE campaign_id = ? ORDER BY priority DESC, created_at`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows.Scan)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// SaveCodex stores a codex configuration with campaign isolation.
func (r *SQLRepository) SaveCodex(ctx context.Context, campaignID string, codex *domain.Codex) error {
	if campaignID == "" {
		return fmt.Errorf("%w: campaignID is required", ErrInvalidInput)
	}
	if codex == nil || codex.ID == "" {
		return fmt.Errorf("%w: codex with id is required", ErrInvalidInput)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO codices (
			id, campaign_id, name, description, version, token_share, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, campaign_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			version = excluded.version,
			token_share = excluded.token_share,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		codex.ID, campaignID, codex.Name, codex.Description,
		codex.Version, codex.TokenShare, boolToInt(codex.Enabled),
		now, now,
	)
	return err
}

// GetCodex retrieves a codex with campaign isolation.
func (r *SQLRepository) GetCodex(ctx context.Context, campaignID string, codexID string) (*domain.Codex, error) {
	if campaignID == "" {
		return nil, fmt.Errorf("%w: campaignID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, campaign_id, name, description, version, token_share, enabled, created_at, updated_at
		FROM codices
		WHERE campaign_id = ? AND id = ?
	`

	var c domain.Codex
	var description, version sql.NullString
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), campaignID, codexID).Scan(
		&c.ID, &c.CampaignID, &c.Name, &description, &version,
		&c.TokenShare, &enabled, &c.CreatedAt, &c.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c.Description = description.String
	c.Version = version.String
	c.Enabled = enabled == 1
	return &c, nil
}

// ListCodices retrieves all enabled codices for a campaign.
func (r *SQLRepository) ListCodices(ctx context.Context, campaignID string) ([]*domain.Codex, error) {
	if campaignID == "" {
		return nil, fmt.Errorf("%w: campaignID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, campaign_id, name, description, version, token_share, enabled, created_at, updated_at
		FROM codices
		WHERE campaign_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codices []*domain.Codex
	for rows.Next() {
		var c domain.Codex
		var description, version sql.NullString
		var enabled int

		if err := rows.Scan(
			&c.ID, &c.CampaignID, &c.Name, &description, &version,
			&c.TokenShare, &enabled, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}

		c.Description = description.String
		c.Version = version.String
		c.Enabled = enabled == 1
		codices = append(codices, &c)
	}
	return codices, rows.Err()
}

// DeleteCodex soft-deletes a codex by setting enabled = 0.
func (r *SQLRepository) DeleteCodex(ctx context.Context, campaignID string, codexID string) error {
	if campaignID == "" {
		return fmt.Errorf("%w: campaignID is required", ErrInvalidInput)
	}

	query := `
		UPDATE codices
		SET enabled = 0, updated_at = ?
		WHERE campaign_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), campaignID, codexID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveSession stores or updates a session with campaign isolation.
func (r *SQLRepository) SaveSession(ctx context.Context, campaignID string, session *domain.Session) error {
	if campaignID == "" {
		return fmt.Errorf("%w: campaignID is required", ErrInvalidInput)
	}
	if session == nil || session.ID == "" {
		return fmt.Errorf("%w: session with id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO sessions (id, campaign_id, name, turn_number, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, campaign_id) DO UPDATE SET
			name = excluded.name,
			turn_number = excluded.turn_number,
			updated_at = excluded.updated_at
	`

	updatedAt := session.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		session.ID, campaignID, session.Name, session.TurnNumber,
		session.CreatedAt, updatedAt,
	)
	return err
}

// GetSession retrieves a session with campaign isolation.
func (r *SQLRepository) GetSession(ctx context.Context, campaignID string, sessionID string) (*domain.Session, error) {
	if campaignID == "" {
		return nil, fmt.Errorf("%w: campaignID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, campaign_id, name, turn_number, created_at, updated_at
		FROM sessions
		WHERE campaign_id = ? AND id = ?
	`

	var s domain.Session
	var name sql.NullString

	err := r.db.QueryRowContext(ctx, r.rebind(query), campaignID, sessionID).Scan(
		&s.ID, &s.CampaignID, &name, &s.TurnNumber, &s.CreatedAt, &s.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	s.Name = name.String
	return &s, nil
}

// AppendTurnEntry stores one history entry for a session.
func (r *SQLRepository) AppendTurnEntry(ctx context.Context, campaignID string, sessionID string, entry *domain.TurnEntry) error {
	if campaignID == "" || sessionID == "" {
		return fmt.Errorf("%w: campaignID and sessionID are required", ErrInvalidInput)
	}
	if entry == nil {
		return fmt.Errorf("%w: entry is required", ErrInvalidInput)
	}

	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO turn_entries (id, campaign_id, session_id, turn_number, role, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		id, campaignID, sessionID, entry.TurnNumber, entry.Role, entry.Text, createdAt,
	)
	return err
}

// ListTurnEntries retrieves the most recent history entries of a
// session, oldest first. limit <= 0 returns everything.
func (r *SQLRepository) ListTurnEntries(ctx context.Context, campaignID string, sessionID string, limit int) ([]*domain.TurnEntry, error) {
	if campaignID == "" || sessionID == "" {
		return nil, fmt.Errorf("%w: campaignID and sessionID are required", ErrInvalidInput)
	}

	query := `
		SELECT id, session_id, turn_number, role, text, created_at
		FROM turn_entries
		WHERE campaign_id = ? AND session_id = ?
		ORDER BY created_at DESC, id DESC
	`
	args := []any{campaignID, sessionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.TurnEntry
	for rows.Next() {
		var e domain.TurnEntry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.TurnNumber, &e.Role, &e.Text, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Flip newest-first to chronological order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// AppendMemory stores a memory entry for a session.
func (r *SQLRepository) AppendMemory(ctx context.Context, campaignID string, sessionID string, memory *domain.Memory) error {
	if campaignID == "" || sessionID == "" {
		return fmt.Errorf("%w: campaignID and sessionID are required", ErrInvalidInput)
	}
	if memory == nil {
		return fmt.Errorf("%w: memory is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO memories (id, campaign_id, session_id, text, pinned, importance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		uuid.New().String(), campaignID, sessionID,
		memory.Text, boolToInt(memory.Pinned), memory.Importance, time.Now().UTC(),
	)
	return err
}

// ListMemories retrieves a session's memories in insertion order.
func (r *SQLRepository) ListMemories(ctx context.Context, campaignID string, sessionID string) ([]*domain.Memory, error) {
	if campaignID == "" || sessionID == "" {
		return nil, fmt.Errorf("%w: campaignID and sessionID are required", ErrInvalidInput)
	}

	query := `
		SELECT text, pinned, importance
		FROM memories
		WHERE campaign_id = ? AND session_id = ?
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), campaignID, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []*domain.Memory
	for rows.Next() {
		var m domain.Memory
		var pinned int
		if err := rows.Scan(&m.Text, &pinned, &m.Importance); err != nil {
			return nil, err
		}
		m.Pinned = pinned == 1
		memories = append(memories, &m)
	}
	return memories, rows.Err()
}

// SaveEvaluation stores a turn evaluation with campaign isolation.
func (r *SQLRepository) SaveEvaluation(ctx context.Context, campaignID string, eval *domain.TurnEvaluation) error {
	if campaignID == "" {
		return fmt.Errorf("%w: campaignID is required", ErrInvalidInput)
	}

	activated, _ := json.Marshal(eval.Activated)
	skipped, _ := json.Marshal(eval.Skipped)
	codexResults, _ := json.Marshal(eval.CodexResults)
	metadata, _ := json.Marshal(eval.Metadata)

	query := `
		INSERT INTO evaluations (
			id, campaign_id, session_id, turn_number, status, timestamp,
			activated, skipped, total_tokens, budget_exceeded, prompt_block, codex_results, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		eval.ID, campaignID, eval.SessionID, eval.TurnNumber, eval.Status, eval.Timestamp,
		string(activated), string(skipped), eval.TotalTokens, boolToInt(eval.BudgetExceeded),
		eval.PromptBlock, string(codexResults), string(metadata),
	)
	return err
}

// GetEvaluation retrieves an evaluation by ID with campaign isolation.
func (r *SQLRepository) GetEvaluation(ctx context.Context, campaignID string, evalID string) (*domain.TurnEvaluation, error) {
	if campaignID == "" {
		return nil, fmt.Errorf("%w: campaignID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, campaign_id, session_id, turn_number, status, timestamp,
			   activated, skipped, total_tokens, budget_exceeded, prompt_block, codex_results, metadata
		FROM evaluations
		WHERE campaign_id = ? AND id = ?
	`

	var eval domain.TurnEvaluation
	var sessionID, promptBlock sql.NullString
	var activated, skipped, codexResults, metadata string
	var budgetExceeded int

	err := r.db.QueryRowContext(ctx, r.rebind(query), campaignID, evalID).Scan(
		&eval.ID, &eval.CampaignID, &sessionID, &eval.TurnNumber, &eval.Status, &eval.Timestamp,
		&activated, &skipped, &eval.TotalTokens, &budgetExceeded, &promptBlock, &codexResults, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	eval.SessionID = sessionID.String
	eval.PromptBlock = promptBlock.String
	eval.BudgetExceeded = budgetExceeded == 1
	json.Unmarshal([]byte(activated), &eval.Activated)
	json.Unmarshal([]byte(skipped), &eval.Skipped)
	json.Unmarshal([]byte(codexResults), &eval.CodexResults)
	json.Unmarshal([]byte(metadata), &eval.Metadata)

	return &eval, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
