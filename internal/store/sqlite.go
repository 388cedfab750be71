package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/eldtechnologies/aicq-agent/internal/models"
)

// SQLiteLog is a single-file memory log for agents that share a host.
type SQLiteLog struct {
	db *sql.DB
}

// NewSQLiteLog opens (and creates) the database at dbPath.
// If dbPath is empty, defaults to "./data/agent.db"
func NewSQLiteLog(ctx context.Context, dbPath string) (*SQLiteLog, error) {
	if dbPath == "" {
		dbPath = "./data/agent.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteLog{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteLog) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL,
		author_id TEXT NOT NULL,
		author_name TEXT DEFAULT '',
		body TEXT NOT NULL,
		in_reply_to TEXT DEFAULT '',
		action TEXT DEFAULT '',
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_memories_room_created ON memories(room_id, created_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteLog) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteLog) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Append inserts m. A memory whose id is already stored is skipped.
func (s *SQLiteLog) Append(ctx context.Context, m *models.Memory) error {
	prepare(m)
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO memories (id, room_id, author_id, author_name, body, in_reply_to, action, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.RoomID, m.AuthorID, m.AuthorName, m.Text, m.InReplyTo, m.Action, m.CreatedAt.UnixMilli())
	return err
}

// Recent returns the newest memories of the room.
func (s *SQLiteLog) Recent(ctx context.Context, roomID string, limit int) ([]models.Memory, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, author_id, author_name, body, in_reply_to, action, created_at
		FROM memories
		WHERE room_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []models.Memory
	for rows.Next() {
		var m models.Memory
		var createdMs int64
		if err := rows.Scan(&m.ID, &m.RoomID, &m.AuthorID, &m.AuthorName, &m.Text, &m.InReplyTo, &m.Action, &createdMs); err != nil {
			return nil, err
		}
		m.CreatedAt = time.UnixMilli(createdMs).UTC()
		memories = append(memories, m)
	}
	return memories, rows.Err()
}
