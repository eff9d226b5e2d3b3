// Package domain defines the core interfaces and types for Loreweave.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require campaignID for strict campaign isolation.
type Repository interface {
	// Rule operations
	SaveRule(ctx context.Context, campaignID string, rule *Rule) error
	GetRule(ctx context.Context, campaignID string, ruleID string) (*Rule, error)
	ListRules(ctx context.Context, campaignID string) ([]*Rule, error)

	// Codex operations
	SaveCodex(ctx context.Context, campaignID string, codex *Codex) error
	GetCodex(ctx context.Context, campaignID string, codexID string) (*Codex, error)
	ListCodices(ctx context.Context, campaignID string) ([]*Codex, error)
	DeleteCodex(ctx context.Context, campaignID string, codexID string) error

	// Session operations
	SaveSession(ctx context.Context, campaignID string, session *Session) error
	GetSession(ctx context.Context, campaignID string, sessionID string) (*Session, error)
	AppendTurnEntry(ctx context.Context, campaignID string, sessionID string, entry *TurnEntry) error
	ListTurnEntries(ctx context.Context, campaignID string, sessionID string, limit int) ([]*TurnEntry, error)
	AppendMemory(ctx context.Context, campaignID string, sessionID string, memory *Memory) error
	ListMemories(ctx context.Context, campaignID string, sessionID string) ([]*Memory, error)

	// Evaluation results
	SaveEvaluation(ctx context.Context, campaignID string, eval *TurnEvaluation) error
	GetEvaluation(ctx context.Context, campaignID string, evalID string) (*TurnEvaluation, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// Session is one playthrough's runtime state container.
type Session struct {
	ID         string    `json:"id"`
	CampaignID string    `json:"campaignId"`
	Name       string    `json:"name,omitempty"`
	TurnNumber int       `json:"turnNumber"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty"`
}

// TurnEntry is one persisted history entry of a session.
type TurnEntry struct {
	ID         string    `json:"id,omitempty"`
	SessionID  string    `json:"sessionId"`
	TurnNumber int       `json:"turnNumber"`
	Role       string    `json:"role"` // RolePlayer or RoleAI
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `json:"driver" yaml:"driver"`

	// SQLite specific
	SQLitePath string `json:"sqlitePath" yaml:"sqlitePath"`

	// PostgreSQL specific
	PostgresHost     string `json:"postgresHost" yaml:"postgresHost"`
	PostgresPort     int    `json:"postgresPort" yaml:"postgresPort"`
	PostgresUser     string `json:"postgresUser" yaml:"postgresUser"`
	PostgresPassword string `json:"postgresPassword" yaml:"postgresPassword"`
	PostgresDB       string `json:"postgresDb" yaml:"postgresDb"`
	PostgresSSLMode  string `json:"postgresSslMode" yaml:"postgresSslMode"`

	// Connection pool settings
	MaxOpenConns    int           `json:"maxOpenConns" yaml:"maxOpenConns"`
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"`
}
