package repository

// Schema definitions for the Loreweave database.
// Compatible with both SQLite and PostgreSQL.

const schemaRules = `
CREATE TABLE IF NOT EXISTS rules (
    id TEXT NOT NULL,
    campaign_id TEXT NOT NULL,
    codex_id TEXT,
    title TEXT,
    primary_keywords TEXT NOT NULL,
    secondary_keywords TEXT NOT NULL,
    logic TEXT NOT NULL DEFAULT 'anyOf',
    always_active INTEGER NOT NULL DEFAULT 0,
    condition TEXT,
    matching TEXT NOT NULL,
    scan_depth INTEGER NOT NULL DEFAULT 0,
    token_weight INTEGER NOT NULL DEFAULT 0,
    probability REAL,
    max_per_turn INTEGER NOT NULL DEFAULT 0,
    priority INTEGER NOT NULL DEFAULT 0,
    content TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    last_activated INTEGER NOT NULL DEFAULT 0,
    activation_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, campaign_id)
);

CREATE INDEX IF NOT EXISTS idx_rules_campaign ON rules(campaign_id);
CREATE INDEX IF NOT EXISTS idx_rules_enabled ON rules(campaign_id, enabled);
CREATE INDEX IF NOT EXISTS idx_rules_codex ON rules(campaign_id, codex_id);
`

const schemaCodices = `
CREATE TABLE IF NOT EXISTS codices (
    id TEXT NOT NULL,
    campaign_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT,
    token_share REAL NOT NULL DEFAULT 0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, campaign_id)
);

CREATE INDEX IF NOT EXISTS idx_codices_campaign ON codices(campaign_id);
CREATE INDEX IF NOT EXISTS idx_codices_enabled ON codices(campaign_id, enabled);
`

const schemaSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT NOT NULL,
    campaign_id TEXT NOT NULL,
    name TEXT,
    turn_number INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, campaign_id)
);

CREATE INDEX IF NOT EXISTS idx_sessions_campaign ON sessions(campaign_id);
`

const schemaTurnEntries = `
CREATE TABLE IF NOT EXISTS turn_entries (
    id TEXT PRIMARY KEY,
    campaign_id TEXT NOT NULL,
    session_id TEXT NOT NULL,
    turn_number INTEGER NOT NULL,
    role TEXT NOT NULL,
    text TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turn_entries_session ON turn_entries(campaign_id, session_id, created_at);
`

const schemaMemories = `
CREATE TABLE IF NOT EXISTS memories (
    id TEXT PRIMARY KEY,
    campaign_id TEXT NOT NULL,
    session_id TEXT NOT NULL,
    text TEXT NOT NULL,
    pinned INTEGER NOT NULL DEFAULT 0,
    importance REAL NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memories_session ON memories(campaign_id, session_id, created_at);
`

const schemaEvaluations = `
CREATE TABLE IF NOT EXISTS evaluations (
    id TEXT PRIMARY KEY,
    campaign_id TEXT NOT NULL,
    session_id TEXT,
    turn_number INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    activated TEXT NOT NULL,
    skipped TEXT,
    total_tokens INTEGER NOT NULL DEFAULT 0,
    budget_exceeded INTEGER NOT NULL DEFAULT 0,
    prompt_block TEXT,
    codex_results TEXT,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evaluations_campaign ON evaluations(campaign_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_session ON evaluations(campaign_id, session_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_status ON evaluations(campaign_id, status);
CREATE INDEX IF NOT EXISTS idx_evaluations_timestamp ON evaluations(campaign_id, timestamp);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaRules,
		schemaCodices,
		schemaSessions,
		schemaTurnEntries,
		schemaMemories,
		schemaEvaluations,
	}
}
