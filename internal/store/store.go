// Package store persists the shared message log agents read and write,
// and the nonce set that guards signed webhook requests.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/eldtechnologies/aicq-agent/internal/models"
)

// Backend names accepted by Open.
const (
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

var ErrUnknownBackend = errors.New("unknown memory backend")

// MemoryLog is the shared, persisted message log. Every agent of a team
// writes its own replies to it and reads everyone's.
type MemoryLog interface {
	// Append stores m, filling its id and time when unset. Appending the
	// same id twice keeps one copy, so every agent may record the same
	// transport message.
	Append(ctx context.Context, m *models.Memory) error
	// Recent returns at most limit memories of the room, newest first.
	Recent(ctx context.Context, roomID string, limit int) ([]models.Memory, error)
	Ping(ctx context.Context) error
	Close() error
}

// NonceStore remembers request nonces for the replay window.
type NonceStore interface {
	IsNonceUsed(ctx context.Context, agentID, nonce string) (bool, error)
	MarkNonceUsed(ctx context.Context, agentID, nonce string, ttl time.Duration) error
}

// Options selects and addresses a MemoryLog backend.
type Options struct {
	Backend     string
	RedisURL    string
	DatabaseURL string
	SQLitePath  string
}

// Open connects the configured backend.
func Open(ctx context.Context, opts Options) (MemoryLog, error) {
	switch opts.Backend {
	case BackendRedis, "":
		return NewRedisLog(ctx, opts.RedisURL)
	case BackendSQLite:
		return NewSQLiteLog(ctx, opts.SQLitePath)
	case BackendPostgres:
		return NewPostgresLog(ctx, opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

// prepare fills the id and timestamp of a memory about to be written.
func prepare(m *models.Memory) {
	if m.ID == "" {
		m.ID = ulid.Make().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.CreatedAt = m.CreatedAt.UTC()
}
