package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// All methods require campaignID for strict campaign isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, campaignID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, campaignID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, campaignID string, key string) error

	// GetContext retrieves a cached session context snapshot.
	GetContext(ctx context.Context, campaignID string, sessionID string) (*ContextSnapshot, error)

	// SetContext caches a session context snapshot so repeated turns
	// against the same session skip the repository round trips.
	SetContext(ctx context.Context, campaignID string, sessionID string, snap *ContextSnapshot, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns the
	// new value. Used for per-session turn numbering.
	IncrementCounter(ctx context.Context, campaignID string, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// ContextSnapshot holds cached session data used to build turn contexts.
type ContextSnapshot struct {
	SessionID  string         `json:"sessionId"`
	TurnNumber int            `json:"turnNumber"`
	History    []HistoryEntry `json:"history,omitempty"`
	Memories   []Memory       `json:"memories,omitempty"`
	CachedAt   string         `json:"cachedAt"`
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string `json:"type" yaml:"type"`

	// Local LRU cache settings (Community tier)
	LocalMaxSize int           `json:"localMaxSize" yaml:"localMaxSize"`
	LocalTTL     time.Duration `json:"localTtl" yaml:"localTtl"`

	// Redis settings (Pro tier)
	RedisAddr     string `json:"redisAddr" yaml:"redisAddr"`
	RedisPassword string `json:"redisPassword" yaml:"redisPassword"`
	RedisDB       int    `json:"redisDb" yaml:"redisDb"`

	// Two-phase settings
	EnableTwoPhase bool `json:"enableTwoPhase" yaml:"enableTwoPhase"` // check local first, then Redis
}
