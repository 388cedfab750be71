package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eldtechnologies/aicq-agent/internal/models"
)

// PostgresLog keeps memories in a shared PostgreSQL database.
type PostgresLog struct {
	pool *pgxpool.Pool
}

// NewPostgresLog creates a connection pool and ensures the schema.
func NewPostgresLog(ctx context.Context, databaseURL string) (*PostgresLog, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s := &PostgresLog{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresLog) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL,
			author_id TEXT NOT NULL,
			author_name TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL,
			in_reply_to TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_memories_room_created ON memories(room_id, created_at DESC);
	`)
	return err
}

// Close closes the database connection pool.
func (s *PostgresLog) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *PostgresLog) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Append inserts m. A memory whose id is already stored is skipped.
func (s *PostgresLog) Append(ctx context.Context, m *models.Memory) error {
	prepare(m)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO memories (id, room_id, author_id, author_name, body, in_reply_to, action, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, m.ID, m.RoomID, m.AuthorID, m.AuthorName, m.Text, m.InReplyTo, m.Action, m.CreatedAt)
	return err
}

// Recent returns the newest memories of the room.
func (s *PostgresLog) Recent(ctx context.Context, roomID string, limit int) ([]models.Memory, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, author_id, author_name, body, in_reply_to, action, created_at
		FROM memories
		WHERE room_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, roomID, limit)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Memory, error) {
		var m models.Memory
		err := row.Scan(&m.ID, &m.RoomID, &m.AuthorID, &m.AuthorName, &m.Text, &m.InReplyTo, &m.Action, &m.CreatedAt)
		return m, err
	})
}
