package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/zhouzirui/z-chat/backend/internal/model/analytics"
	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id             TEXT PRIMARY KEY,
	username       TEXT NOT NULL,
	message        TEXT NOT NULL,
	created_at_ms  INTEGER NOT NULL,
	reply_username TEXT,
	reply_message  TEXT
);
CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages (created_at_ms DESC);

CREATE TABLE IF NOT EXISTS analytics_events (
	id            TEXT PRIMARY KEY,
	event_type    TEXT NOT NULL,
	metadata      TEXT NOT NULL DEFAULT '{}',
	created_at_ms INTEGER NOT NULL
);
`

// SQLite is the durable store backed by a single database file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}
	// one writer keeps SQLITE_BUSY away
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Create validates and inserts a message.
func (s *SQLite) Create(ctx context.Context, msg chat.Message) (chat.Message, error) {
	if err := msg.Normalize(); err != nil {
		return chat.Message{}, err
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC().Truncate(time.Millisecond)

	var replyUser, replyBody sql.NullString
	if msg.ReplyTo != nil {
		replyUser = sql.NullString{String: msg.ReplyTo.Username, Valid: true}
		replyBody = sql.NullString{String: msg.ReplyTo.Message, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, username, message, created_at_ms, reply_username, reply_message) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.Username, msg.Body, msg.CreatedAt.UnixMilli(), replyUser, replyBody,
	)
	if err != nil {
		return chat.Message{}, s.wrap("insert message", err)
	}
	return msg, nil
}

// Count returns how many messages match filter.
func (s *SQLite) Count(ctx context.Context, filter chat.Filter) (int, error) {
	query := `SELECT COUNT(*) FROM messages WHERE 1 = 1`
	args := make([]any, 0, 2)
	if !filter.Since.IsZero() {
		query += ` AND created_at_ms >= ?`
		args = append(args, filter.Since.UnixMilli())
	}
	if filter.UsernameContains != "" {
		query += ` AND instr(username, ?) > 0`
		args = append(args, filter.UsernameContains)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, s.wrap("count messages", err)
	}
	return n, nil
}

// Recent returns the newest messages first.
func (s *SQLite) Recent(ctx context.Context, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, message, created_at_ms, reply_username, reply_message
		 FROM messages ORDER BY created_at_ms DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, s.wrap("query messages", err)
	}
	defer rows.Close()

	out := make([]chat.Message, 0, limit)
	for rows.Next() {
		var (
			msg                  chat.Message
			createdMS            int64
			replyUser, replyBody sql.NullString
		)
		if err := rows.Scan(&msg.ID, &msg.Username, &msg.Body, &createdMS, &replyUser, &replyBody); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.CreatedAt = time.UnixMilli(createdMS).UTC()
		if replyUser.Valid || replyBody.Valid {
			msg.ReplyTo = &chat.ReplyTo{Username: replyUser.String, Message: replyBody.String}
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("iterate messages", err)
	}
	return out, nil
}

// Track inserts an analytics event.
func (s *SQLite) Track(ctx context.Context, event analytics.Event) (analytics.Event, error) {
	if err := validateEvent(&event); err != nil {
		return analytics.Event{}, err
	}

	meta, err := json.Marshal(event.Metadata)
	if err != nil {
		return analytics.Event{}, fmt.Errorf("%w: metadata: %v", ErrInvalidEvent, err)
	}

	event.ID = uuid.NewString()
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	event.Timestamp = event.Timestamp.UTC().Truncate(time.Millisecond)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analytics_events (id, event_type, metadata, created_at_ms) VALUES (?, ?, ?, ?)`,
		event.ID, event.EventType, string(meta), event.Timestamp.UnixMilli(),
	)
	if err != nil {
		return analytics.Event{}, s.wrap("insert analytics event", err)
	}
	return event, nil
}

// Close closes the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) wrap(op string, err error) error {
	if errors.Is(err, sql.ErrConnDone) || err.Error() == "sql: database is closed" {
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	return fmt.Errorf("%s: %w", op, err)
}
